package isp

import (
	"fmt"

	"github.com/arloliu/go-tinyprog/chip"
)

// Fuses holds the three fuse bytes of an ISP device.
type Fuses struct {
	Low  byte
	High byte
	Ext  byte
}

// FusesFromBytes converts raw bytes ordered low, high, extended.
func FusesFromBytes(raw []byte) (Fuses, error) {
	if len(raw) != 3 {
		return Fuses{}, fmt.Errorf("%w: ISP wants 3, got %d", chip.ErrFuseLength, len(raw))
	}

	return Fuses{Low: raw[0], High: raw[1], Ext: raw[2]}, nil
}

// Bytes returns the fuses ordered low, high, extended, the layout used by chip.DecodeFuses.
func (f Fuses) Bytes() []byte {
	return []byte{f.Low, f.High, f.Ext}
}

// Get returns one fuse byte.
func (f Fuses) Get(b chip.FuseByte) byte {
	switch b {
	case chip.FuseHigh:
		return f.High
	case chip.FuseExt:
		return f.Ext
	default:
		return f.Low
	}
}

// With returns a copy of f with one fuse byte replaced.
func (f Fuses) With(b chip.FuseByte, v byte) Fuses {
	switch b {
	case chip.FuseHigh:
		f.High = v
	case chip.FuseExt:
		f.Ext = v
	default:
		f.Low = v
	}

	return f
}

func (f Fuses) String() string {
	return fmt.Sprintf("l:%02X,h:%02X,e:%02X", f.Low, f.High, f.Ext)
}

// fuseOrder is the fixed write order.
var fuseOrder = []chip.FuseByte{chip.FuseLow, chip.FuseHigh, chip.FuseExt}
