package chip

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-tinyprog/internal/util"
)

// Sentinel errors for the chip package.
var (
	ErrUnknownProtocol  = errors.New("chip: unknown protocol")
	ErrFuseLength       = errors.New("chip: wrong number of fuse bytes")
	ErrUnknownFuseField = errors.New("chip: fuse field not defined for protocol")
	ErrInvalidFuseSpec  = errors.New("chip: invalid fuse spec")
	ErrInvalidProfile   = errors.New("chip: invalid chip profile")
)

// FuseByte selects one of the fuse bytes of a device.
type FuseByte uint8

const (
	FuseLow  FuseByte = iota // low fuse, or the single fuse byte of TPI devices
	FuseHigh                 // high fuse
	FuseExt                  // extended fuse
)

// String returns the avrdude memory name of the fuse byte.
func (f FuseByte) String() string {
	switch f {
	case FuseLow:
		return "lfuse"
	case FuseHigh:
		return "hfuse"
	case FuseExt:
		return "efuse"
	default:
		return fmt.Sprintf("fuse%d", uint8(f))
	}
}

// FuseField describes one named bit of a fuse byte.
type FuseField struct {
	// Label is the datasheet name of the bit.
	Label string
	// Group names the multi-bit setting the bit belongs to (CKSEL, SUT, BODLEVEL), or
	// equals Label for single-bit settings.
	Group string
	// Bit is the bit position, 0 = LSB.
	Bit uint8
	// Byte is the fuse byte holding the bit.
	Byte FuseByte
	// Caution marks settings that can lock the programmer out of the device.
	Caution bool
}

// FuseSetting is the decoded state of one fuse field.
type FuseSetting struct {
	Field FuseField
	// Enabled is true when the fuse bit is programmed (0).
	Enabled bool
}

func field(label, group string, b FuseByte, bit uint8) FuseField {
	return FuseField{Label: label, Group: group, Bit: bit, Byte: b}
}

func cautionField(label string, b FuseByte, bit uint8) FuseField {
	return FuseField{Label: label, Group: label, Bit: bit, Byte: b, Caution: true}
}

var ispFields = []FuseField{
	field("CKDIV8", "CKDIV8", FuseLow, 7),
	field("CKOUT", "CKOUT", FuseLow, 6),
	field("SUT1", "SUT", FuseLow, 5),
	field("SUT0", "SUT", FuseLow, 4),
	field("CKSEL3", "CKSEL", FuseLow, 3),
	field("CKSEL2", "CKSEL", FuseLow, 2),
	field("CKSEL1", "CKSEL", FuseLow, 1),
	field("CKSEL0", "CKSEL", FuseLow, 0),

	cautionField("RSTDISBL", FuseHigh, 7),
	cautionField("DWEN", FuseHigh, 6),
	cautionField("SPIEN", FuseHigh, 5),
	field("WDTON", "WDTON", FuseHigh, 4),
	field("EESAVE", "EESAVE", FuseHigh, 3),
	field("BODLEVEL2", "BODLEVEL", FuseHigh, 2),
	field("BODLEVEL1", "BODLEVEL", FuseHigh, 1),
	field("BODLEVEL0", "BODLEVEL", FuseHigh, 0),

	field("SELFPRGEN", "SELFPRGEN", FuseExt, 0),
}

// TPI devices only use the low three bits of their single fuse byte.
var tpiFields = []FuseField{
	field("CKOUT", "CKOUT", FuseLow, 2),
	field("WDTON", "WDTON", FuseLow, 1),
	field("RSTDISBL", "RSTDISBL", FuseLow, 0),
}

// DecodeFuses decodes raw fuse bytes into the settings of every field of the protocol.
// raw must hold p.FuseBytes() bytes ordered low, high, extended.
func DecodeFuses(p Protocol, raw []byte) ([]FuseSetting, error) {
	if err := checkFuseLength(p, raw); err != nil {
		return nil, err
	}

	fields := p.table()
	settings := make([]FuseSetting, 0, len(fields))
	for _, f := range fields {
		settings = append(settings, FuseSetting{Field: f, Enabled: isEnabled(raw[f.Byte], f.Bit)})
	}

	return settings, nil
}

// EncodeFuses applies edits to a copy of raw and returns it.
//
// Bits without an edit, including bits that are not part of any field, keep their value
// from raw. Decoding raw and encoding the result without changes returns raw.
func EncodeFuses(p Protocol, raw []byte, edits []FuseSetting) ([]byte, error) {
	if err := checkFuseLength(p, raw); err != nil {
		return nil, err
	}

	out := util.CloneSlice(raw, 0)
	for _, e := range edits {
		if !hasField(p, e.Field) {
			return nil, fmt.Errorf("%w: %s %s bit %d", ErrUnknownFuseField, p, e.Field.Byte, e.Field.Bit)
		}
		out[e.Field.Byte] = applySetting(out[e.Field.Byte], e.Field.Bit, e.Enabled)
	}

	return out, nil
}

// Lookup returns the setting for label, if present.
func Lookup(settings []FuseSetting, label string) (FuseSetting, bool) {
	for _, s := range settings {
		if strings.EqualFold(s.Field.Label, label) {
			return s, true
		}
	}

	return FuseSetting{}, false
}

// isEnabled and applySetting hold the inverted polarity rule: a cleared bit is an enabled fuse.
func isEnabled(b byte, bit uint8) bool {
	return b&(1<<bit) == 0
}

func applySetting(b byte, bit uint8, enabled bool) byte {
	if enabled {
		return b &^ (1 << bit)
	}

	return b | 1<<bit
}

func hasField(p Protocol, f FuseField) bool {
	for _, known := range p.table() {
		if known.Byte == f.Byte && known.Bit == f.Bit {
			return true
		}
	}

	return false
}

func checkFuseLength(p Protocol, raw []byte) error {
	if !p.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
	if len(raw) != p.FuseBytes() {
		return fmt.Errorf("%w: %s wants %d, got %d", ErrFuseLength, p, p.FuseBytes(), len(raw))
	}

	return nil
}

// ParseFuseSpec parses a default fuse declaration.
//
// TPI devices use a single hex byte ("FF"). ISP devices list the bytes by prefix
// ("l:60,h:DF,e:FF"); all three must be present.
func ParseFuseSpec(p Protocol, spec string) ([]byte, error) {
	spec = strings.TrimSpace(spec)

	switch p {
	case TPI:
		v, err := strconv.ParseUint(spec, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFuseSpec, spec)
		}

		return []byte{byte(v)}, nil

	case ISP:
		out := make([]byte, 3)
		seen := 0
		for _, part := range strings.Split(spec, ",") {
			key, val, ok := strings.Cut(strings.TrimSpace(part), ":")
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrInvalidFuseSpec, spec)
			}
			idx := strings.Index("lhe", strings.ToLower(key))
			if len(key) != 1 || idx < 0 {
				return nil, fmt.Errorf("%w: unknown fuse %q in %q", ErrInvalidFuseSpec, key, spec)
			}
			v, err := strconv.ParseUint(val, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidFuseSpec, spec)
			}
			out[idx] = byte(v)
			seen |= 1 << idx
		}
		if seen != 0b111 {
			return nil, fmt.Errorf("%w: %q must set l, h and e", ErrInvalidFuseSpec, spec)
		}

		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
}

// FormatFuseSpec is the inverse of ParseFuseSpec.
func FormatFuseSpec(p Protocol, raw []byte) (string, error) {
	if err := checkFuseLength(p, raw); err != nil {
		return "", err
	}

	switch p {
	case TPI:
		return fmt.Sprintf("%02X", raw[0]), nil
	case ISP:
		return fmt.Sprintf("l:%02X,h:%02X,e:%02X", raw[0], raw[1], raw[2]), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
}
