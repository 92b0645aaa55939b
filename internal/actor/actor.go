// Package actor provides the mailbox-and-goroutine primitives shared
// by every actor in the driver process (Hub, TripEngine, DriverFinder,
// PeerLink, PassengerLink), generalized from the teacher's
// per-partition Invoker/poll pattern (pkg/mcast/core/peer.go).
package actor

import "sync"

// Invoker spawns background work. Production code uses
// GoroutineInvoker; tests substitute one that tracks a WaitGroup so
// shutdown can be awaited deterministically (mirrors the teacher's
// test.TestInvoker in test/testing.go).
type Invoker interface {
	Spawn(f func())
}

// GoroutineInvoker spawns each task on its own goroutine with no
// further bookkeeping.
type GoroutineInvoker struct{}

func (GoroutineInvoker) Spawn(f func()) {
	go f()
}

// TrackingInvoker spawns each task on its own goroutine and tracks
// completion on a WaitGroup, so a test can wait for every spawned
// actor goroutine to exit before asserting goleak.VerifyNone.
type TrackingInvoker struct {
	wg sync.WaitGroup
}

func (t *TrackingInvoker) Spawn(f func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		f()
	}()
}

// Wait blocks until every task spawned by this invoker has returned.
func (t *TrackingInvoker) Wait() {
	t.wg.Wait()
}
