package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaiter_NotifyDeliversToRegistered(t *testing.T) {
	w := NewWaiter()
	ch := w.Register("driver-1")

	w.Notify("driver-1", true, 50*time.Millisecond)

	select {
	case v := <-ch:
		assert.Equal(t, true, v)
	case <-time.After(time.Second):
		t.Fatal("value was never delivered")
	}
}

func TestWaiter_NotifyWithoutRegistrationIsNoop(t *testing.T) {
	w := NewWaiter()
	w.Notify("nobody-waiting", 42, 10*time.Millisecond)
}

func TestWaiter_ForgetPreventsDelivery(t *testing.T) {
	w := NewWaiter()
	ch := w.Register("driver-2")
	w.Forget("driver-2")

	w.Notify("driver-2", "late", 10*time.Millisecond)

	select {
	case v := <-ch:
		t.Fatalf("expected no delivery after Forget, got %v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestWaiter_NotifyDoesNotBlockWithoutAReader(t *testing.T) {
	w := NewWaiter()
	ch := w.Register("driver-3")

	done := make(chan struct{})
	go func() {
		w.Notify("driver-3", 1, 20*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked despite the channel's buffer having room")
	}

	assert.Equal(t, 1, <-ch)
}
