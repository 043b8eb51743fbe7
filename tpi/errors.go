package tpi

import "errors"

var (
	// ErrHandshakeTimeout means the sketch never sent the ACK ACK ready sequence.
	ErrHandshakeTimeout = errors.New("tpi: handshake timeout")
	// ErrResponseTimeout means the response was not terminated by ESC in time.
	// The bytes received so far are returned with it.
	ErrResponseTimeout = errors.New("tpi: response timeout")
	// ErrLinkBusy is returned when a transaction is already running on the link.
	ErrLinkBusy = errors.New("tpi: link busy")
	// ErrBadResponse is returned when a response does not have the expected form.
	ErrBadResponse = errors.New("tpi: unexpected response")
)
