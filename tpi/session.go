package tpi

import "sync/atomic"

// Session is one programming transaction.
type Session struct {
	cmd    string
	state  atomic.Uint32
	events chan byte
	stop   chan struct{} // closed when the transaction stops consuming events
	done   chan struct{} // closed after the link is closed and the result is set

	rsp string
	err error
}

func newSession(cmd string, queueSize int) *Session {
	return &Session{
		cmd:    cmd,
		events: make(chan byte, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Command returns the command the session sends, without the terminator.
func (s *Session) Command() string {
	return s.cmd
}

// State returns the current state of the transaction.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done returns a channel closed when the transaction has ended and the link is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the transaction ends and returns the response.
//
// The error is nil on Complete. On a response timeout the partial response is returned
// together with ErrResponseTimeout.
func (s *Session) Wait() (string, error) {
	<-s.done
	return s.rsp, s.err
}

// receive is the link listener of the session.
func (s *Session) receive(b byte) {
	select {
	case s.events <- b:
	case <-s.stop:
	}
}
