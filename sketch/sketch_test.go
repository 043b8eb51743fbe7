package sketch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-tinyprog/ihex"
	"github.com/arloliu/go-tinyprog/pragma"
)

func TestFormatCode(t *testing.T) {
	code := make([]byte, 18)
	for i := range code {
		code[i] = byte(i)
	}

	want := "\n  0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F" +
		",\n  0x10, 0x11"
	assert.Equal(t, want, formatCode(code))
	assert.Equal(t, "\n  0xAB", formatCode([]byte{0xAB}))
}

func TestFormatParams(t *testing.T) {
	got := formatParams([]pragma.Param{
		{Name: "ab", Addr: 0x1234, Type: 1},
		{Name: "c", Addr: 0x40, Type: 2},
	})
	assert.Equal(t, "'a','b',0,1,0x12,0x34,\n  'c',0,2,0x00,0x40,\n  ", got)
	assert.Empty(t, formatParams(nil))
}

func TestGenerate(t *testing.T) {
	img := ihex.NewCodeImage([]byte{0x0A, 0xC0, 0xFF, 0xCF}, 0x0E)

	var buf bytes.Buffer
	err := Generate(&buf, Data{
		Name:   "blink.c",
		Chip:   "attiny10",
		Image:  img,
		Params: []pragma.Param{{Name: "delay", Addr: 0x0040, Type: 1}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "// Programmer data for blink.c (attiny10)")
	assert.Contains(t, out, "#define CODE_SIZE 4\n")
	assert.Contains(t, out, "#define FUSE_CHAR 'E'\n")
	assert.Contains(t, out, `const char progName[] = "blink.c";`)
	assert.Contains(t, out, "const uint8_t progCode[] PROGMEM = {\n  0x0A, 0xC0, 0xFF, 0xCF\n};")
	assert.Contains(t, out, "{\n  'd','e','l','a','y',0,1,0x00,0x40,\n  0\n};")
	assert.NotContains(t, out, "/*[")
}

func TestGenerate_NoParams(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, Data{Name: "x.c", Image: ihex.NewCodeImage([]byte{1}, 0x0F)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "{\n  0\n};\n"), buf.String())
}

func TestGenerate_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, Generate(&buf, Data{Name: "x.c"}), ErrEmptyImage)
	require.ErrorIs(t, Generate(&buf, Data{Name: "x.c", Image: ihex.NewCodeImage(nil, 0)}), ErrEmptyImage)
	assert.Zero(t, buf.Len())
}

func TestGenerateTemplate(t *testing.T) {
	tmpl, err := Parse("/*[.Size]*/ bytes, fuse /*[.Fuse]*/")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, GenerateTemplate(&buf, tmpl, Data{Image: ihex.NewCodeImage([]byte{1, 2, 3}, 0x07)}))
	assert.Equal(t, "3 bytes, fuse 7", buf.String())

	_, err = Parse("/*[.Size")
	require.Error(t, err)
}
