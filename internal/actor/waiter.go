package actor

import (
	"sync"
	"time"
)

// Waiter registers keyed, one-shot notification channels with a
// bounded delivery timeout, generalizing the teacher's observer map
// (pkg/mcast/core/peer.go's `observers` field) and its delivery
// pattern (pkg/mcast/core/deliver.go's Commit, which drops the
// notification if nobody is listening within 150ms). DriverFinder
// uses this to wait on a candidate's CanHandleTripACK.
type Waiter struct {
	mutex sync.Mutex
	wait  map[string]chan interface{}
}

// NewWaiter constructs an empty Waiter.
func NewWaiter() *Waiter {
	return &Waiter{wait: make(map[string]chan interface{})}
}

// Register opens a notification channel for key, replacing any
// previous registration under the same key.
func (w *Waiter) Register(key string) <-chan interface{} {
	ch := make(chan interface{}, 1)
	w.mutex.Lock()
	w.wait[key] = ch
	w.mutex.Unlock()
	return ch
}

// Forget removes a registration without notifying it, used when the
// caller gives up waiting (e.g. on its own timeout).
func (w *Waiter) Forget(key string) {
	w.mutex.Lock()
	delete(w.wait, key)
	w.mutex.Unlock()
}

// Notify delivers value to the channel registered under key, if any,
// within the given grace period, then removes the registration.
func (w *Waiter) Notify(key string, value interface{}, grace time.Duration) {
	w.mutex.Lock()
	ch, ok := w.wait[key]
	delete(w.wait, key)
	w.mutex.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- value:
	case <-time.After(grace):
	}
}
