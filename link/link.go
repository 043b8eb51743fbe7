package link

import "errors"

var (
	// ErrAlreadyOpen is returned by Open when the link is already open.
	ErrAlreadyOpen = errors.New("link: already open")
	// ErrNotOpen is returned by Write and Close when the link is not open.
	ErrNotOpen = errors.New("link: not open")
	// ErrPortInUse is returned by Open when another Port in this process holds the device.
	ErrPortInUse = errors.New("link: port in use")
)

// Listener receives incoming bytes.
//
// It is called from the link's receive goroutine and must not call Close on the same link.
type Listener func(b byte)

// Link is a half-duplex byte stream to a device.
type Link interface {
	// Open opens the link and starts delivering received bytes to l.
	Open(l Listener) error
	// Close closes the link and stops delivery. Once Close returns the listener is not called again.
	Close() error
	// Write sends p to the device.
	Write(p []byte) (int, error)
	// Name returns the device name of the link.
	Name() string
	// IsOpen reports whether the link is open.
	IsOpen() bool
}
