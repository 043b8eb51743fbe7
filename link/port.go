package link

import (
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.bug.st/serial"

	"github.com/arloliu/go-tinyprog/internal/pool"
	"github.com/arloliu/go-tinyprog/logger"
)

// openPorts holds the device names currently held by a Port in this process.
var openPorts = xsync.NewMapOf[string, *Port]()

// openFunc opens the serial device; replaced in tests.
var openFunc = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Port is a Link over a serial device.
type Port struct {
	cfg    *PortConfig
	logger logger.Logger
	state  AtomicOpState

	mu         sync.Mutex
	port       serial.Port
	readerDone chan struct{}
}

var _ Link = (*Port)(nil)

// NewPort creates a closed Port for cfg.
func NewPort(cfg *PortConfig) *Port {
	return &Port{
		cfg:    cfg,
		logger: cfg.GetLogger().With("port", cfg.Name()),
	}
}

// Name returns the serial device name.
func (p *Port) Name() string {
	return p.cfg.Name()
}

// IsOpen reports whether the port is open.
func (p *Port) IsOpen() bool {
	return p.state.IsOpened()
}

// Open opens the serial device at 8N1 and starts the receive goroutine.
func (p *Port) Open(l Listener) error {
	if l == nil {
		return errors.New("link: nil listener")
	}

	if !p.state.ToOpening() {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, p.Name())
	}

	if holder, loaded := openPorts.LoadOrStore(p.Name(), p); loaded && holder != p {
		p.state.ToClosed()
		return fmt.Errorf("%w: %s", ErrPortInUse, p.Name())
	}

	mode := &serial.Mode{
		BaudRate: p.cfg.BaudRate(),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := openFunc(p.Name(), mode)
	if err != nil {
		p.release()
		return fmt.Errorf("link: open %s: %w", p.Name(), err)
	}
	if err := sp.SetReadTimeout(p.cfg.ReadTimeout()); err != nil {
		_ = sp.Close()
		p.release()

		return fmt.Errorf("link: set read timeout on %s: %w", p.Name(), err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.port = sp
	p.readerDone = done
	p.mu.Unlock()

	p.state.ToOpened()
	go p.receiveLoop(sp, l, done)

	p.logger.Debug("port opened", "baud", p.cfg.BaudRate())

	return nil
}

// Write sends b to the device.
func (p *Port) Write(b []byte) (int, error) {
	if !p.state.IsOpened() {
		return 0, ErrNotOpen
	}

	p.mu.Lock()
	sp := p.port
	p.mu.Unlock()
	if sp == nil {
		return 0, ErrNotOpen
	}

	n, err := sp.Write(b)
	if err != nil {
		return n, fmt.Errorf("link: write %s: %w", p.Name(), err)
	}

	return n, nil
}

// Close closes the device and waits, up to the close timeout, for the receive goroutine to stop.
func (p *Port) Close() error {
	if !p.state.ToClosing() {
		return ErrNotOpen
	}

	p.mu.Lock()
	sp, done := p.port, p.readerDone
	p.port = nil
	p.mu.Unlock()

	err := sp.Close()
	if !pool.WaitDone(done, p.cfg.CloseTimeout()) {
		p.logger.Warn("receive goroutine did not stop in time", "timeout", p.cfg.CloseTimeout())
	}

	p.release()
	p.logger.Debug("port closed")

	if err != nil {
		return fmt.Errorf("link: close %s: %w", p.Name(), err)
	}

	return nil
}

func (p *Port) release() {
	openPorts.Compute(p.Name(), func(holder *Port, loaded bool) (*Port, bool) {
		// delete only our own entry
		return holder, !loaded || holder == p
	})
	p.state.ToClosed()
}

func (p *Port) receiveLoop(sp serial.Port, l Listener, done chan struct{}) {
	defer close(done)

	buf := make([]byte, p.cfg.ReadBufSize())
	for {
		n, err := sp.Read(buf)
		if err != nil {
			if p.state.IsOpened() {
				p.logger.Error("serial read failed", "error", err)
			}

			return
		}

		// n == 0 is a read timeout
		if n == 0 && !p.state.IsOpened() {
			return
		}

		for _, b := range buf[:n] {
			l(b)
		}

		if !p.state.IsOpened() {
			return
		}
	}
}
