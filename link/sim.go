package link

import (
	"sync"

	"github.com/arloliu/go-tinyprog/internal/queue"
	"github.com/arloliu/go-tinyprog/internal/util"
)

// Sim is an in-memory Link that plays the device side of a conversation.
//
// Bytes queued with Inject are delivered to the listener from a goroutine owned by the Sim,
// never from the caller of Inject or Write, so an OnWrite hook may inject a reply while the
// writer is still inside Write.
type Sim struct {
	name string

	mu       sync.Mutex
	state    AtomicOpState
	listener Listener
	pending  queue.Queue[byte]
	written  []byte
	onWrite  func(s *Sim, p []byte)
	openErr  error
	opens    int
	closes   int

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

var _ Link = (*Sim)(nil)

// NewSim creates a closed simulated link.
func NewSim(name string) *Sim {
	return &Sim{name: name, pending: queue.NewSliceQueue[byte](64)}
}

// OnWrite registers a hook called with every write, after it has been recorded.
func (s *Sim) OnWrite(fn func(s *Sim, p []byte)) {
	s.mu.Lock()
	s.onWrite = fn
	s.mu.Unlock()
}

// FailOpen makes the next Open calls fail with err; nil clears it.
func (s *Sim) FailOpen(err error) {
	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
}

// Name returns the simulated device name.
func (s *Sim) Name() string {
	return s.name
}

// IsOpen reports whether the link is open.
func (s *Sim) IsOpen() bool {
	return s.state.IsOpened()
}

// Open starts delivering injected bytes to l.
func (s *Sim) Open(l Listener) error {
	if !s.state.ToOpening() {
		return ErrAlreadyOpen
	}

	s.mu.Lock()
	if s.openErr != nil {
		err := s.openErr
		s.mu.Unlock()
		s.state.ToClosed()

		return err
	}
	s.listener = l
	s.opens++
	s.notify = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	notify, stop, done := s.notify, s.stop, s.done
	s.mu.Unlock()

	s.state.ToOpened()
	go s.deliverLoop(notify, stop, done)
	// bytes injected before Open
	s.signal(notify)

	return nil
}

// Close stops delivery and discards undelivered bytes.
func (s *Sim) Close() error {
	if !s.state.ToClosing() {
		return ErrNotOpen
	}

	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	s.pending.Reset()
	s.listener = nil
	s.closes++
	s.mu.Unlock()

	s.state.ToClosed()

	return nil
}

// Write records p and calls the OnWrite hook.
func (s *Sim) Write(p []byte) (int, error) {
	if !s.state.IsOpened() {
		return 0, ErrNotOpen
	}

	s.mu.Lock()
	s.written = append(s.written, p...)
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		hook(s, p)
	}

	return len(p), nil
}

// Inject queues bytes to be received by the listener.
func (s *Sim) Inject(p ...byte) {
	s.mu.Lock()
	s.pending.Enqueue(p...)
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		s.signal(notify)
	}
}

// InjectString queues the bytes of str.
func (s *Sim) InjectString(str string) {
	s.Inject([]byte(str)...)
}

// Written returns a copy of everything written so far.
func (s *Sim) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return util.CloneSlice(s.written, 0)
}

// Counts returns how many times the link was opened and closed.
func (s *Sim) Counts() (opens int, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opens, s.closes
}

func (s *Sim) signal(notify chan struct{}) {
	select {
	case notify <- struct{}{}:
	default:
	}
}

func (s *Sim) deliverLoop(notify, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-notify:
		}

		for {
			select {
			case <-stop:
				return
			default:
			}

			s.mu.Lock()
			b, ok := s.pending.Dequeue()
			if !ok {
				s.mu.Unlock()
				break
			}
			l := s.listener
			s.mu.Unlock()

			l(b)
		}
	}
}
