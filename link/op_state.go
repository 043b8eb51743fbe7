package link

import "sync/atomic"

// OpState is the open state of a link.
type OpState uint32

const (
	ClosedState OpState = iota
	ClosingState
	OpeningState
	OpenedState
)

func (s OpState) String() string {
	switch s {
	case ClosedState:
		return "Closed"
	case ClosingState:
		return "Closing"
	case OpeningState:
		return "Opening"
	case OpenedState:
		return "Opened"
	default:
		return "Unknown"
	}
}

// AtomicOpState guards the Closed → Opening → Opened → Closing → Closed cycle of a link.
type AtomicOpState struct {
	state atomic.Uint32
}

func (st *AtomicOpState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicOpState) Get() OpState {
	return OpState(st.state.Load())
}

func (st *AtomicOpState) IsClosed() bool {
	return st.Get() == ClosedState
}

func (st *AtomicOpState) IsOpened() bool {
	return st.Get() == OpenedState
}

// ToOpening moves Closed to Opening. It fails if the link is in any other state.
func (st *AtomicOpState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(ClosedState), uint32(OpeningState))
}

// ToOpened moves Opening to Opened.
func (st *AtomicOpState) ToOpened() bool {
	return st.state.CompareAndSwap(uint32(OpeningState), uint32(OpenedState))
}

// ToClosing moves Opened to Closing.
func (st *AtomicOpState) ToClosing() bool {
	return st.state.CompareAndSwap(uint32(OpenedState), uint32(ClosingState))
}

// ToClosed moves Closing or Opening to Closed. Opening → Closed rolls back a failed open.
func (st *AtomicOpState) ToClosed() bool {
	if st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(ClosedState))
}
