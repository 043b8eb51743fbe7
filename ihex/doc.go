// Package ihex parses and renders the Intel-HEX subset used for ATtiny firmware images.
//
// # Format
//
// Each whitespace separated line is either a record
//
//	:LLAAAATTdd..ddCC
//
// (length, 16-bit load address, record type, data, two's-complement checksum) or the
// non-standard fuse marker
//
//	*F
//
// which carries the low nibble of the target's fuse byte. Only data records are applied to
// the image; end-of-file and address-extension records are skipped since the targets have a
// flat address space of at most 64 KiB.
//
// A record with a wrong checksum makes Parse fail with ErrChecksumMismatch. Other malformed
// lines are skipped.
package ihex
