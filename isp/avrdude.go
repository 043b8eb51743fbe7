package isp

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	paths "github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"

	"github.com/arloliu/go-tinyprog/chip"
	"github.com/arloliu/go-tinyprog/logger"
)

// Avrdude defaults.
const (
	DefaultAvrdudePath = "avrdude"
	DefaultProgrammer  = "usbtiny"
	DefaultSerialBaud  = 19200
)

// runFunc runs the utility and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Avrdude is a FuseProgrammer that runs the avrdude utility.
type Avrdude struct {
	path       *paths.Path
	configFile *paths.Path
	programmer string
	part       string
	port       string
	baud       int
	verbose    bool

	run    runFunc
	logger logger.Logger
}

var _ FuseProgrammer = (*Avrdude)(nil)

// AvrdudeOption configures an Avrdude.
type AvrdudeOption func(*Avrdude) error

// NewAvrdude creates an adapter for the device whose avrdude part id is part, e.g. "t85".
func NewAvrdude(part string, opts ...AvrdudeOption) (*Avrdude, error) {
	if part == "" {
		return nil, errors.New("isp: empty avrdude part id")
	}

	a := &Avrdude{
		path:       paths.New(DefaultAvrdudePath),
		programmer: DefaultProgrammer,
		part:       part,
		baud:       DefaultSerialBaud,
		run:        execRun,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// WithAvrdudePath sets the avrdude executable.
func WithAvrdudePath(p string) AvrdudeOption {
	return func(a *Avrdude) error {
		if p == "" {
			return errors.New("isp: empty avrdude path")
		}
		a.path = paths.New(p)

		return nil
	}
}

// WithConfigFile passes an avrdude.conf with -C.
func WithConfigFile(p string) AvrdudeOption {
	return func(a *Avrdude) error {
		a.configFile = paths.New(p)
		return nil
	}
}

// WithProgrammer sets the avrdude programmer id (-c).
func WithProgrammer(id string) AvrdudeOption {
	return func(a *Avrdude) error {
		if id == "" {
			return errors.New("isp: empty programmer id")
		}
		a.programmer = id

		return nil
	}
}

// WithSerialPort makes avrdude talk to a serial programmer, such as an Arduino running
// ArduinoISP. Without it the programmer is addressed as "-P usb".
func WithSerialPort(port string, baud int) AvrdudeOption {
	return func(a *Avrdude) error {
		if port == "" {
			return errors.New("isp: empty serial port")
		}
		if baud <= 0 {
			baud = DefaultSerialBaud
		}
		a.port, a.baud = port, baud

		return nil
	}
}

// WithVerbose passes -v.
func WithVerbose(v bool) AvrdudeOption {
	return func(a *Avrdude) error {
		a.verbose = v
		return nil
	}
}

// WithAvrdudeLogger sets the logger.
func WithAvrdudeLogger(l logger.Logger) AvrdudeOption {
	return func(a *Avrdude) error {
		if l == nil {
			return errors.New("isp: nil logger")
		}
		a.logger = l

		return nil
	}
}

// ReadFuses reads the low, high and extended fuse bytes in one avrdude run.
func (a *Avrdude) ReadFuses(ctx context.Context) (Fuses, error) {
	dir, err := paths.MkTempDir("", "tinyprog-fuses")
	if err != nil {
		return Fuses{}, errors.WithMessage(err, "creating temp dir for fuse dump")
	}
	defer func() { _ = dir.RemoveAll() }()

	ops := make([]string, 0, 2*len(fuseOrder))
	for _, fb := range fuseOrder {
		ops = append(ops, "-U", fmt.Sprintf("%s:r:%s:h", fb, dir.Join(fb.String()+".hex")))
	}
	if err := a.invoke(ctx, ops...); err != nil {
		return Fuses{}, errors.WithMessage(err, "reading fuses")
	}

	var f Fuses
	for _, fb := range fuseOrder {
		data, err := dir.Join(fb.String() + ".hex").ReadFile()
		if err != nil {
			return Fuses{}, errors.WithMessagef(err, "reading %s dump", fb)
		}
		v, err := parseHexByte(string(data))
		if err != nil {
			return Fuses{}, errors.WithMessagef(err, "parsing %s dump", fb)
		}
		f = f.With(fb, v)
	}

	return f, nil
}

// WriteFuse writes one fuse byte.
func (a *Avrdude) WriteFuse(ctx context.Context, fuse chip.FuseByte, value byte) error {
	if err := a.invoke(ctx, "-U", fmt.Sprintf("%s:w:0x%02X:m", fuse, value)); err != nil {
		return errors.WithMessagef(err, "writing %s", fuse)
	}

	return nil
}

// ReadSignature reads the device signature and returns it as 6 upper-case hex characters.
func (a *Avrdude) ReadSignature(ctx context.Context) (string, error) {
	dir, err := paths.MkTempDir("", "tinyprog-sig")
	if err != nil {
		return "", errors.WithMessage(err, "creating temp dir for signature dump")
	}
	defer func() { _ = dir.RemoveAll() }()

	sigFile := dir.Join("sig.hex")
	if err := a.invoke(ctx, "-U", fmt.Sprintf("signature:r:%s:h", sigFile)); err != nil {
		return "", errors.WithMessage(err, "reading signature")
	}

	data, err := sigFile.ReadFile()
	if err != nil {
		return "", errors.WithMessage(err, "reading signature dump")
	}

	return ParseSignature(string(data))
}

// ParseSignature converts avrdude's hex dump of the signature ("0x1e,0x93,0xb") to "1E930B".
func ParseSignature(dump string) (string, error) {
	var sb strings.Builder
	for _, part := range strings.Split(strings.TrimSpace(dump), ",") {
		v, err := parseHexByte(part)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%02X", v)
	}

	if sb.Len() != 6 {
		return "", errors.Errorf("isp: signature %q is not 3 bytes", strings.TrimSpace(dump))
	}

	return sb.String(), nil
}

func parseHexByte(s string) (byte, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "isp: bad byte %q", s)
	}

	return byte(v), nil
}

func (a *Avrdude) baseArgs() []string {
	var args []string
	if a.configFile != nil {
		args = append(args, "-C", a.configFile.String())
	}
	if a.verbose {
		args = append(args, "-v")
	}
	args = append(args, "-c", a.programmer, "-p", a.part)
	if a.port != "" {
		args = append(args, "-P", a.port, "-b", strconv.Itoa(a.baud))
	} else {
		args = append(args, "-P", "usb")
	}

	return args
}

func (a *Avrdude) invoke(ctx context.Context, ops ...string) error {
	args := append(a.baseArgs(), ops...)
	a.logger.Debug("running avrdude", "path", a.path.String(), "args", strings.Join(args, " "))

	out, err := a.run(ctx, a.path.String(), args...)
	if err != nil {
		return errors.Wrapf(err, "avrdude: %s", lastLine(out))
	}

	return nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
