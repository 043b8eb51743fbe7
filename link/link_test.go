package link

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakeSerial implements the parts of serial.Port used by Port.
type fakeSerial struct {
	serial.Port

	mu          sync.Mutex
	mode        *serial.Mode
	readTimeout time.Duration
	written     []byte
	rx          chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
}

func newFakeSerial() *fakeSerial {
	return &fakeSerial{
		rx:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeSerial) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	f.readTimeout = d
	f.mu.Unlock()

	return nil
}

func (f *fakeSerial) Read(p []byte) (int, error) {
	f.mu.Lock()
	d := f.readTimeout
	f.mu.Unlock()

	select {
	case <-f.closed:
		return 0, errors.New("port closed")
	case b := <-f.rx:
		return copy(p, b), nil
	case <-time.After(d):
		return 0, nil
	}
}

func (f *fakeSerial) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, p...)

	return len(p), nil
}

func (f *fakeSerial) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func useFakeSerial(t *testing.T) map[string]*fakeSerial {
	t.Helper()

	var mu sync.Mutex
	opened := make(map[string]*fakeSerial)
	orig := openFunc
	openFunc = func(name string, mode *serial.Mode) (serial.Port, error) {
		mu.Lock()
		defer mu.Unlock()
		f := newFakeSerial()
		f.mode = mode
		opened[name] = f

		return f, nil
	}
	t.Cleanup(func() { openFunc = orig })

	return opened
}

type collector struct {
	mu  sync.Mutex
	buf []byte
}

func (c *collector) listen(b byte) {
	c.mu.Lock()
	c.buf = append(c.buf, b)
	c.mu.Unlock()
}

func (c *collector) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.buf...)
}

func TestNewPortConfig(t *testing.T) {
	cfg, err := NewPortConfig("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Name())
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate())
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout())
	assert.Equal(t, DefaultCloseTimeout, cfg.CloseTimeout())
	assert.Equal(t, DefaultReadBufSize, cfg.ReadBufSize())
	assert.NotNil(t, cfg.GetLogger())

	cfg, err = NewPortConfig("COM3",
		WithBaudRate(19200),
		WithReadTimeout(10*time.Millisecond),
		WithCloseTimeout(100*time.Millisecond),
		WithReadBufSize(1),
	)
	require.NoError(t, err)
	assert.Equal(t, 19200, cfg.BaudRate())
	assert.Equal(t, 10*time.Millisecond, cfg.ReadTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.CloseTimeout())
	assert.Equal(t, 1, cfg.ReadBufSize())
}

func TestNewPortConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  PortOption
	}{
		{"baud low", WithBaudRate(300)},
		{"baud high", WithBaudRate(MaxBaudRate + 1)},
		{"read timeout", WithReadTimeout(0)},
		{"close timeout", WithCloseTimeout(time.Minute)},
		{"buffer", WithReadBufSize(0)},
		{"logger", WithLogger(nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPortConfig("COM1", tc.opt)
			require.Error(t, err)
		})
	}

	_, err := NewPortConfig("")
	require.Error(t, err)
}

func TestPort_OpenWriteClose(t *testing.T) {
	opened := useFakeSerial(t)

	cfg, err := NewPortConfig("/dev/test-port-a", WithBaudRate(19200), WithReadTimeout(5*time.Millisecond))
	require.NoError(t, err)
	p := NewPort(cfg)

	var c collector
	require.NoError(t, p.Open(c.listen))
	assert.True(t, p.IsOpen())

	f := opened["/dev/test-port-a"]
	require.NotNil(t, f)
	assert.Equal(t, 19200, f.mode.BaudRate)
	assert.Equal(t, 8, f.mode.DataBits)
	assert.Equal(t, serial.NoParity, f.mode.Parity)
	assert.Equal(t, serial.OneStopBit, f.mode.StopBits)

	n, err := p.Write([]byte("Q\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.rx <- []byte{0x06, 0x06}
	f.rx <- []byte("OK")
	require.Eventually(t, func() bool {
		return string(c.bytes()) == "\x06\x06OK"
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, p.Open(c.listen), ErrAlreadyOpen)

	require.NoError(t, p.Close())
	assert.False(t, p.IsOpen())
	assert.Equal(t, "Q\n", string(f.written))

	_, err = p.Write([]byte("x"))
	require.ErrorIs(t, err, ErrNotOpen)
	require.ErrorIs(t, p.Close(), ErrNotOpen)

	// reopen after close
	require.NoError(t, p.Open(c.listen))
	require.NoError(t, p.Close())
}

func TestPort_Exclusive(t *testing.T) {
	useFakeSerial(t)

	cfg, err := NewPortConfig("/dev/test-port-b", WithReadTimeout(5*time.Millisecond))
	require.NoError(t, err)

	p1 := NewPort(cfg)
	p2 := NewPort(cfg)

	require.NoError(t, p1.Open(func(byte) {}))
	err = p2.Open(func(byte) {})
	require.ErrorIs(t, err, ErrPortInUse)
	assert.False(t, p2.IsOpen())

	require.NoError(t, p1.Close())
	require.NoError(t, p2.Open(func(byte) {}))
	require.NoError(t, p2.Close())
}

func TestPort_OpenFailure(t *testing.T) {
	orig := openFunc
	openFunc = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such device")
	}
	t.Cleanup(func() { openFunc = orig })

	cfg, err := NewPortConfig("/dev/test-port-c")
	require.NoError(t, err)
	p := NewPort(cfg)

	require.Error(t, p.Open(func(byte) {}))
	assert.False(t, p.IsOpen())

	// the name is released
	_, held := openPorts.Load("/dev/test-port-c")
	assert.False(t, held)
}

func TestSim(t *testing.T) {
	s := NewSim("sim")
	assert.Equal(t, "sim", s.Name())

	_, err := s.Write([]byte("x"))
	require.ErrorIs(t, err, ErrNotOpen)

	s.OnWrite(func(s *Sim, p []byte) {
		if string(p) == "ping" {
			s.InjectString("pong")
		}
	})

	var c collector
	require.NoError(t, s.Open(c.listen))
	require.ErrorIs(t, s.Open(c.listen), ErrAlreadyOpen)

	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return string(c.bytes()) == "pong" }, time.Second, time.Millisecond)
	assert.Equal(t, "ping", string(s.Written()))

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), ErrNotOpen)
	opens, closes := s.Counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestSim_InjectBeforeOpen(t *testing.T) {
	s := NewSim("sim")
	s.Inject(1, 2, 3)

	var c collector
	require.NoError(t, s.Open(c.listen))
	require.Eventually(t, func() bool { return len(c.bytes()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []byte{1, 2, 3}, c.bytes())
	require.NoError(t, s.Close())
}

func TestSim_FailOpen(t *testing.T) {
	s := NewSim("sim")
	boom := errors.New("boom")
	s.FailOpen(boom)
	require.ErrorIs(t, s.Open(func(byte) {}), boom)
	assert.False(t, s.IsOpen())

	s.FailOpen(nil)
	require.NoError(t, s.Open(func(byte) {}))
	require.NoError(t, s.Close())
}

func TestOpState(t *testing.T) {
	var st AtomicOpState
	assert.True(t, st.IsClosed())
	assert.False(t, st.ToClosing())
	assert.True(t, st.ToOpening())
	assert.False(t, st.ToOpening())
	assert.True(t, st.ToOpened())
	assert.Equal(t, "Opened", st.String())
	assert.True(t, st.ToClosing())
	assert.True(t, st.ToClosed())
	assert.True(t, st.IsClosed())

	// rollback of a failed open
	assert.True(t, st.ToOpening())
	assert.True(t, st.ToClosed())
	assert.Equal(t, "Unknown", OpState(42).String())
}

func TestPortInfo_String(t *testing.T) {
	assert.Equal(t, "/dev/ttyS0", PortInfo{Name: "/dev/ttyS0"}.String())
	assert.Equal(t, "/dev/ttyUSB0 [1A86:7523] USB Serial",
		PortInfo{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "7523", Product: "USB Serial"}.String())
}
