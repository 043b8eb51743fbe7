// Package pragma reads the build declarations a firmware source carries in #pragma lines.
//
//	#pragma chip attiny85
//	#pragma lfuse 0x62
//	#pragma hfuse 0xDF
//	#pragma efuse 0xFF
//	#pragma xparm delay:0040:1    // exported parameter name:hex address:type
//
// Only the lines up to and including the last #pragma are scanned. Line comments are
// removed before a line is read.
package pragma

import (
	"strconv"
	"strings"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/isp"
)

// Param is a parameter exported by the firmware that a generated sketch can patch.
type Param struct {
	Name string
	Addr uint16
	Type byte
}

// Declarations holds the pragmas of one source file.
type Declarations struct {
	// Chip is the first declared device name, lower case; empty when none is declared.
	Chip string
	// Params lists the xparm declarations in source order.
	Params []Param
	// Skipped holds pragma lines that were recognized but could not be read.
	Skipped []string

	fuses [3]byte
	have  [3]bool
}

// Parse scans src for pragmas. Unknown pragmas are ignored.
func Parse(src string) *Declarations {
	d := &Declarations{}

	idx := strings.LastIndex(src, "#pragma")
	if idx < 0 {
		return d
	}
	if end := strings.IndexByte(src[idx:], '\n'); end >= 0 {
		src = src[:idx+end]
	}

	for _, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)

		rest, ok := strings.CutPrefix(line, "#pragma")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			continue
		}

		if !d.apply(fields[0], fields[1]) {
			d.Skipped = append(d.Skipped, line)
		}
	}

	return d
}

func (d *Declarations) apply(key, val string) bool {
	switch key {
	case "chip":
		if d.Chip == "" {
			d.Chip = strings.ToLower(val)
		}
	case "lfuse":
		return d.setFuse(chip.FuseLow, val)
	case "hfuse":
		return d.setFuse(chip.FuseHigh, val)
	case "efuse":
		return d.setFuse(chip.FuseExt, val)
	case "xparm":
		p, ok := parseParam(val)
		if !ok {
			return false
		}
		d.Params = append(d.Params, p)
	}

	return true
}

func (d *Declarations) setFuse(fb chip.FuseByte, val string) bool {
	v, err := strconv.ParseUint(val, 0, 8)
	if err != nil {
		return false
	}
	d.fuses[fb], d.have[fb] = byte(v), true

	return true
}

func parseParam(val string) (Param, bool) {
	parts := strings.Split(val, ":")
	if len(parts) != 3 || !isIdent(parts[0]) {
		return Param{}, false
	}

	addr, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return Param{}, false
	}
	typ, err := strconv.ParseUint(parts[2], 0, 8)
	if err != nil {
		return Param{}, false
	}

	return Param{Name: parts[0], Addr: uint16(addr), Type: byte(typ)}, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}

// Fuse returns one declared fuse byte.
func (d *Declarations) Fuse(fb chip.FuseByte) (byte, bool) {
	if int(fb) >= len(d.fuses) {
		return 0, false
	}

	return d.fuses[fb], d.have[fb]
}

// Fuses returns the declared ISP fuses. It reports false unless all three are declared.
func (d *Declarations) Fuses() (isp.Fuses, bool) {
	if !d.have[chip.FuseLow] || !d.have[chip.FuseHigh] || !d.have[chip.FuseExt] {
		return isp.Fuses{}, false
	}

	return isp.Fuses{Low: d.fuses[chip.FuseLow], High: d.fuses[chip.FuseHigh], Ext: d.fuses[chip.FuseExt]}, true
}

// ChipInfo resolves the declared chip in r. A chip that r does not know counts as not declared.
func (d *Declarations) ChipInfo(r *chip.Registry) (string, chip.Info, bool) {
	if d.Chip == "" {
		return "", chip.Info{}, false
	}
	info, ok := r.Lookup(d.Chip)
	if !ok {
		return "", chip.Info{}, false
	}

	return d.Chip, info, true
}
