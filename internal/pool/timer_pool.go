package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return back the timer to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}

		return t
	}

	return time.NewTimer(d)
}

// PutTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// WaitDone waits until done is closed or d elapses, using a pooled timer.
// It returns false on timeout.
func WaitDone(done <-chan struct{}, d time.Duration) bool {
	timer := GetTimer(d)
	defer PutTimer(timer)

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
