// Package pool recycles timers for the link's bounded waits: the optional
// reply timeout in Do and the read-loop join in Close.
package pool

import (
	"sync"
	"time"
)

var timers sync.Pool

// GetTimer returns a pooled timer armed for d. Hand it back with PutTimer
// once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	v := timers.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t := v.(*time.Timer) // the pool only ever holds *time.Timer
	if t.Reset(d) {
		// Still armed from its previous owner; clear any stale tick.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool. The caller must not touch t
// afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// The timer already fired; drain the tick it left behind.
		select {
		case <-t.C:
		default:
		}
	}

	timers.Put(t)
}
