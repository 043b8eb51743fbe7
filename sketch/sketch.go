// Package sketch generates an Arduino sketch that carries a firmware image, so that the
// board can program a TPI device on its own.
package sketch

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/arloliu/go-tinyprog/ihex"
	"github.com/arloliu/go-tinyprog/pragma"
)

// ErrEmptyImage is returned when the image has no code.
var ErrEmptyImage = errors.New("sketch: empty image")

// bytesPerLine is the number of code bytes per generated source line.
const bytesPerLine = 16

// Data is the input of a generated sketch.
type Data struct {
	// Name is the source file name shown by the sketch.
	Name string
	// Chip is the target device name.
	Chip   string
	Image  *ihex.CodeImage
	Params []pragma.Param
}

// DefaultTemplate is the sketch layout. Actions use /*[ ]*/ delimiters so that the template
// stays valid C.
const DefaultTemplate = `// Programmer data for /*[.Name]*/ (/*[.Chip]*/), generated by tinyprog.
// Build together with the TPI programmer sketch. The board programs the target on reset.

#include <avr/pgmspace.h>

#define CODE_SIZE /*[.Size]*/
#define FUSE_CHAR '/*[.Fuse]*/'

const char progName[] = /*[cstr .Name]*/;

const uint8_t progCode[] PROGMEM = {/*[.Code]*/
};

// name, 0, type, address high, address low; an empty name ends the list
const uint8_t progParms[] PROGMEM = {
  /*[.Params]*/0
};
`

var defaultTmpl = mustParse(DefaultTemplate)

// Parse compiles a sketch template that uses /*[ ]*/ action delimiters.
func Parse(text string) (*template.Template, error) {
	return template.New("sketch").
		Delims("/*[", "]*/").
		Funcs(template.FuncMap{"cstr": strconv.Quote}).
		Parse(text)
}

func mustParse(text string) *template.Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return t
}

// view is what templates see.
type view struct {
	Name   string
	Chip   string
	Size   int
	Fuse   string
	Code   string
	Params string
}

// Generate writes the sketch for d using DefaultTemplate.
func Generate(w io.Writer, d Data) error {
	return GenerateTemplate(w, defaultTmpl, d)
}

// GenerateTemplate writes the sketch for d using t.
func GenerateTemplate(w io.Writer, t *template.Template, d Data) error {
	if d.Image == nil || d.Image.Len() == 0 {
		return ErrEmptyImage
	}

	v := view{
		Name:   d.Name,
		Chip:   d.Chip,
		Size:   d.Image.Len(),
		Fuse:   string(ihex.FuseChar(d.Image.Fuses())),
		Code:   formatCode(d.Image.Data()),
		Params: formatParams(d.Params),
	}
	if err := t.Execute(w, v); err != nil {
		return fmt.Errorf("sketch: %w", err)
	}

	return nil
}

// formatCode lists the bytes as 0xNN, bytesPerLine per line, each line starting with a
// newline and two spaces.
func formatCode(code []byte) string {
	var sb strings.Builder
	for i, b := range code {
		switch {
		case i == 0:
			sb.WriteString("\n  ")
		case i%bytesPerLine == 0:
			sb.WriteString(",\n  ")
		default:
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}

	return sb.String()
}

// formatParams writes one line per parameter, each ending with ",\n  ".
func formatParams(params []pragma.Param) string {
	var sb strings.Builder
	for _, p := range params {
		for _, c := range []byte(p.Name) {
			fmt.Fprintf(&sb, "'%c',", c)
		}
		fmt.Fprintf(&sb, "0,%d,0x%02X,0x%02X,\n  ", p.Type, byte(p.Addr>>8), byte(p.Addr))
	}

	return sb.String()
}
