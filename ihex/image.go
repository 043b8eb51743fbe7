package ihex

import (
	"bytes"

	"github.com/arloliu/go-tinyprog/internal/util"
)

// DefaultFuses is the fuse nibble used when the input has no fuse marker:
// all fuses unprogrammed.
const DefaultFuses byte = 0x0F

// CodeImage is a firmware image with its fuse byte.
//
// The data slice covers addresses 0 up to the highest written address; gaps are zero.
// A CodeImage is not modified after it has been built; accessors return copies.
type CodeImage struct {
	data  []byte
	fuses byte
}

// NewCodeImage creates a CodeImage holding a copy of data.
// Only the low nibble of fuses is kept, matching what the fuse marker can carry.
func NewCodeImage(data []byte, fuses byte) *CodeImage {
	return &CodeImage{data: util.CloneSlice(data, 0), fuses: fuses & 0x0F}
}

// Data returns a copy of the image bytes.
func (img *CodeImage) Data() []byte {
	return util.CloneSlice(img.data, 0)
}

// Len returns the image size in bytes.
func (img *CodeImage) Len() int {
	return len(img.data)
}

// Fuses returns the fuse byte.
func (img *CodeImage) Fuses() byte {
	return img.fuses
}

// Equal reports whether both images hold the same data and fuse byte.
func (img *CodeImage) Equal(other *CodeImage) bool {
	if img == nil || other == nil {
		return img == other
	}

	return img.fuses == other.fuses && bytes.Equal(img.data, other.data)
}

// FuseChar returns the upper-case hex digit for the low nibble of b.
func FuseChar(b byte) byte {
	return hexDigits[b&0x0F]
}

const hexDigits = "0123456789ABCDEF"
