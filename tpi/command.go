package tpi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-tinyprog/ihex"
)

// Wire bytes of the programmer sketch.
const (
	ACK        byte = 0x06 // sent twice when the sketch is ready for a command
	ESC        byte = 0x1B // ends a response
	Terminator byte = '*'  // ends a command
)

// Commands understood by the sketch. The engine appends Terminator.
const (
	// ExitCommand asks a listening bootloader to leave programming mode. It is sent at the
	// start of every transaction.
	ExitCommand = "Q\n"
	// CmdSignature reads the device signature and fuse byte.
	CmdSignature = "S\n"
	// CmdFuse reads the fuse byte. The reply looks like "Fuse: 0xFE".
	CmdFuse = "F\n"
	// CmdPowerOn enables target power.
	CmdPowerOn = "V\n"
	// CmdPowerOff disables target power.
	CmdPowerOff = "X\n"
	// CmdCalibrate runs the clock calibration code after a download.
	CmdCalibrate = "M\n"
)

// DownloadCommand frames Intel-HEX text for download. The text is expected to end with an EOF record.
func DownloadCommand(hexText string) string {
	return "\nD\n" + hexText + "\n"
}

// DownloadAndCalibrateCommand downloads the calibration image and then runs it.
func DownloadAndCalibrateCommand(calHex string) string {
	return DownloadCommand(calHex) + CmdCalibrate
}

// WriteFuseCommand downloads an image holding only a fuse marker, which writes the low
// nibble of f.
func WriteFuseCommand(f byte) string {
	return DownloadCommand("*" + string(ihex.FuseChar(f)) + "\n" + ihex.EOFRecord)
}

// ParseFuseResponse extracts the fuse byte from the reply to CmdFuse.
func ParseFuseResponse(rsp string) (byte, error) {
	rsp = strings.TrimLeft(rsp, "\r\n")
	if !strings.HasPrefix(rsp, "Fuse:") {
		return 0, fmt.Errorf("%w: %q", ErrBadResponse, rsp)
	}

	idx := strings.Index(rsp, "0xF")
	if idx < 0 || idx+4 > len(rsp) {
		return 0, fmt.Errorf("%w: %q", ErrBadResponse, rsp)
	}

	v, err := strconv.ParseUint(rsp[idx+2:idx+4], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadResponse, rsp)
	}

	return byte(v), nil
}
