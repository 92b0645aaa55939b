package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMailbox_RunsEnqueuedTasksInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	inv := &TrackingInvoker{}
	mb := NewMailbox(4)
	inv.Spawn(mb.Run)

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		n := i
		mb.Enqueue(func() { order = append(order, n) })
	}
	mb.Enqueue(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not drain in time")
	}

	mb.Stop()
	inv.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestMailbox_EnqueueAfterStopDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	inv := &TrackingInvoker{}
	mb := NewMailbox(0)
	inv.Spawn(mb.Run)
	mb.Stop()
	inv.Wait()

	done := make(chan struct{})
	go func() {
		mb.Enqueue(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after Stop")
	}
}
