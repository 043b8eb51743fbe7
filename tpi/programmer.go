package tpi

import (
	"strings"

	"github.com/arloliu/go-tinyprog/ihex"
)

// Programmer runs the sketch commands over an Engine.
type Programmer struct {
	engine *Engine
}

// NewProgrammer creates a Programmer on e.
func NewProgrammer(e *Engine) *Programmer {
	return &Programmer{engine: e}
}

// Engine returns the underlying engine.
func (p *Programmer) Engine() *Engine {
	return p.engine
}

// Program downloads img, code and fuse marker. The sketch reports progress as it writes,
// so the transaction runs in the background; use the session to follow it.
func (p *Programmer) Program(img *ihex.CodeImage) (*Session, error) {
	text, err := ihex.Render(img)
	if err != nil {
		return nil, err
	}

	return p.ProgramHex(text)
}

// ProgramHex downloads Intel-HEX text as produced by the compiler.
func (p *Programmer) ProgramHex(hexText string) (*Session, error) {
	return p.engine.Send(DownloadCommand(strings.TrimRight(hexText, "\r\n")))
}

// ReadFuse queries the fuse byte.
func (p *Programmer) ReadFuse() (byte, error) {
	rsp, err := p.engine.Query(CmdFuse)
	if err != nil {
		return 0, err
	}

	return ParseFuseResponse(rsp)
}

// WriteFuse writes the low nibble of f.
func (p *Programmer) WriteFuse(f byte) (*Session, error) {
	return p.engine.Send(WriteFuseCommand(f))
}

// ReadSignature returns the sketch's signature report, which also shows the fuse byte.
func (p *Programmer) ReadSignature() (string, error) {
	return p.engine.Query(CmdSignature)
}

// Calibrate downloads the calibration image calHex and runs it.
func (p *Programmer) Calibrate(calHex string) (*Session, error) {
	return p.engine.Send(DownloadAndCalibrateCommand(strings.TrimRight(calHex, "\r\n")))
}

// PowerOn enables target power.
func (p *Programmer) PowerOn() (string, error) {
	return p.engine.Query(CmdPowerOn)
}

// PowerOff disables target power.
func (p *Programmer) PowerOff() (string, error) {
	return p.engine.Query(CmdPowerOff)
}
