// Package isp updates the fuses of ISP devices with a read, compare and write cycle.
//
// Sync reads the current fuse bytes once and walks the low, high and extended bytes in that
// order. A byte that already holds its target value is left alone and reported as such; a
// differing byte is written. The first failed write stops the walk, so later bytes keep
// their old values.
//
// The device side is a FuseProgrammer. Avrdude implements it by running the avrdude utility.
package isp
