// Package chip describes the supported target devices and their fuse bytes.
//
// A [Registry] maps a device name to its programming protocol, avrdude part id, default fuse
// values and 3-byte device signature, and maps signatures back to names. Registries are built
// once with a [Builder] and are read-only afterwards, so one instance can be shared by every
// component that needs chip metadata.
//
// The fuse codec ([DecodeFuses], [EncodeFuses]) translates raw fuse bytes into named settings.
// Fuse bits use inverted polarity: a programmed (0) bit enables the feature, an unprogrammed
// (1) bit disables it. Every conversion between raw bits and settings goes through this
// package.
package chip
