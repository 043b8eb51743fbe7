package chip

import (
	"fmt"
	"strings"

	"github.com/arloliu/go-tinyprog/internal/util"
)

// Protocol is the programming protocol family of a device.
type Protocol uint8

const (
	// TPI is the Tiny Programming Interface used by the 6-pin devices. TPI devices are
	// programmed through the serial programmer sketch.
	TPI Protocol = iota + 1
	// ISP is In-System Programming over SPI, handled by an external programmer utility.
	ISP
)

func (p Protocol) String() string {
	switch p {
	case TPI:
		return "TPI"
	case ISP:
		return "ISP"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

// ParseProtocol converts "TPI" or "ISP" (case-insensitive) to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TPI":
		return TPI, nil
	case "ISP":
		return ISP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
	}
}

// FuseBytes returns the number of fuse bytes a device of this family has.
func (p Protocol) FuseBytes() int {
	switch p {
	case TPI:
		return 1
	case ISP:
		return 3
	default:
		return 0
	}
}

// Fields returns the fuse field table of the protocol family, most significant bit first
// within each byte. The returned slice is a copy.
func (p Protocol) Fields() []FuseField {
	fields := p.table()
	if fields == nil {
		return nil
	}

	return util.CloneSlice(fields, 0)
}

// table returns the shared field table, read-only.
func (p Protocol) table() []FuseField {
	switch p {
	case TPI:
		return tpiFields
	case ISP:
		return ispFields
	default:
		return nil
	}
}

func (p Protocol) valid() bool {
	return p == TPI || p == ISP
}
