package ihex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record types.
const (
	RecordData byte = 0x00
	RecordEOF  byte = 0x01
)

// minRecordChars is the length a ':' line must exceed to be treated as a record.
const minRecordChars = 11

// recordOverhead is the number of non-data bytes in a record: length, address (2), type, checksum.
const recordOverhead = 5

// Sentinel errors for the ihex package.
var (
	ErrChecksumMismatch = errors.New("ihex: checksum mismatch")
	ErrImageTooLarge    = errors.New("ihex: image exceeds 64 KiB address space")

	errMalformed = errors.New("ihex: malformed record")
)

type record struct {
	length  byte
	address uint16
	typ     byte
	data    []byte
}

// Parse decodes Intel-HEX text into a CodeImage.
//
// Data records are written at their load address; the image grows to the highest written
// address and gaps are zero-filled. A record reaching past the 64 KiB address space is skipped. A record with a wrong checksum aborts the parse and no
// image is returned.
func Parse(text string) (*CodeImage, error) {
	fuses := DefaultFuses
	var buf []byte

	for idx, line := range strings.Fields(text) {
		switch {
		case line[0] == ':' && len(line) > minRecordChars:
			rec, err := decodeRecord(line)
			if err != nil {
				if errors.Is(err, ErrChecksumMismatch) {
					return nil, fmt.Errorf("%w: line %d: %s", err, idx+1, line)
				}

				continue
			}

			if rec.typ != RecordData {
				continue
			}

			end := int(rec.address) + len(rec.data)
			if end > MaxImageSize {
				continue
			}
			if end > len(buf) {
				buf = append(buf, make([]byte, end-len(buf))...)
			}
			copy(buf[rec.address:], rec.data)

		case line[0] == '*' && len(line) == 2:
			if v, ok := fromHex(line[1]); ok {
				fuses = v
			}
		}
	}

	return &CodeImage{data: buf, fuses: fuses}, nil
}

// ParseReader reads all of r and parses it with Parse.
func ParseReader(r io.Reader) (*CodeImage, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ihex: read: %w", err)
	}

	return Parse(string(text))
}

// ParseFile reads and parses the HEX file at path.
func ParseFile(path string) (*CodeImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ihex: %w", err)
	}
	defer f.Close()

	return ParseReader(f)
}

// decodeRecord decodes one ':' line.
//
// Non-data records are returned without checksum verification so the caller can skip them.
func decodeRecord(line string) (*record, error) {
	raw := make([]byte, 0, (len(line)-1)/2)
	for i := 1; i+1 < len(line); i += 2 {
		msn, ok1 := fromHex(line[i])
		lsn, ok2 := fromHex(line[i+1])
		if !ok1 || !ok2 {
			return nil, errMalformed
		}
		raw = append(raw, msn<<4|lsn)
	}

	if len(raw) < recordOverhead-1 {
		return nil, errMalformed
	}

	rec := &record{
		length:  raw[0],
		address: uint16(raw[1])<<8 | uint16(raw[2]),
		typ:     raw[3],
	}
	if rec.typ != RecordData {
		return rec, nil
	}

	total := recordOverhead + int(rec.length)
	if len(raw) < total {
		return nil, errMalformed
	}

	var sum byte
	for _, b := range raw[:total] {
		sum += b
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: residue 0x%02X", ErrChecksumMismatch, sum)
	}

	rec.data = raw[recordOverhead-1 : total-1]

	return rec, nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
