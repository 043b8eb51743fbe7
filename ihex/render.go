package ihex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/marcinbor85/gohex"
)

// RecordSize is the number of data bytes per rendered record.
const RecordSize = 16

// MaxImageSize is the largest image Render accepts.
const MaxImageSize = 0x10000

// EOFRecord terminates a HEX payload.
const EOFRecord = ":00000001FF"

// Render encodes img as Intel-HEX text.
//
// The output holds only checksum-correct data records, the "*F" fuse marker and a final
// end-of-file record, one per line. Parsing the output yields the same image.
func Render(img *CodeImage) (string, error) {
	if len(img.data) > MaxImageSize {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(img.data))
	}

	mem := gohex.NewMemory()
	if len(img.data) > 0 {
		if err := mem.AddBinary(0, img.data); err != nil {
			return "", fmt.Errorf("ihex: render: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := mem.DumpIntelHex(&buf, RecordSize); err != nil {
		return "", fmt.Errorf("ihex: render: %w", err)
	}

	var sb strings.Builder
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSpace(line)
		// gohex leads with an extended address record, the programmer only takes data records
		if !isDataRecord(line) {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	// the fuse marker must precede the EOF record, the programmer stops reading there
	sb.WriteByte('*')
	sb.WriteByte(FuseChar(img.fuses))
	sb.WriteByte('\n')
	sb.WriteString(EOFRecord)
	sb.WriteByte('\n')

	return sb.String(), nil
}

func isDataRecord(line string) bool {
	return len(line) >= 9 && line[0] == ':' && line[7:9] == "00"
}
