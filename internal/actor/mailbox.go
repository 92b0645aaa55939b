package actor

// Mailbox is the single-threaded, serial-processing execution context
// every actor (Hub, TripEngine, DriverFinder) runs on, per spec.md §5:
// "Each long-lived component is an actor: a single-threaded cooperative
// task with a serial mailbox." State mutation inside a function handed
// to Enqueue needs no locking, since Run drains the channel on one
// goroutine.
type Mailbox struct {
	tasks chan func()
	done  chan struct{}
}

// NewMailbox constructs an unstarted Mailbox with the given queue
// depth (0 is a legitimate, fully-synchronous mailbox).
func NewMailbox(depth int) *Mailbox {
	return &Mailbox{
		tasks: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Run drains the mailbox on the calling goroutine until Stop is
// called. Callers spawn this via an Invoker.
func (m *Mailbox) Run() {
	for {
		select {
		case <-m.done:
			return
		case f, ok := <-m.tasks:
			if !ok {
				return
			}
			f()
		}
	}
}

// Enqueue schedules f to run on the mailbox's goroutine. Safe to call
// from any goroutine; called from the mailbox's own goroutine it
// blocks forever once the queue is full.
func (m *Mailbox) Enqueue(f func()) {
	select {
	case <-m.done:
		return
	case m.tasks <- f:
	}
}

// Stop ends Run once the task it is currently running, if any,
// finishes. Tasks still waiting in the queue may be dropped.
func (m *Mailbox) Stop() {
	close(m.done)
}
