package tpi

// State is the state of a programming transaction.
type State uint32

const (
	Idle State = iota
	AwaitExitHandshake
	Ready
	Transacting
	Complete
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case AwaitExitHandshake:
		return "AWAIT_EXIT_HANDSHAKE"
	case Ready:
		return "READY"
	case Transacting:
		return "TRANSACTING"
	case Complete:
		return "COMPLETE"
	case TimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s ends a transaction.
func (s State) IsTerminal() bool {
	return s == Complete || s == TimedOut
}
