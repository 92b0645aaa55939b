package passengerlink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

func TestPassengerLink_SendDeliversToPeer(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := net.Pipe()
	inv := &actor.TrackingInvoker{}

	var closed uint32
	closedCh := make(chan struct{}, 1)
	link := New(5, wire.NewConn(server), inv, logging.New(nil), func(id uint32, m wire.Message) {}, func(id uint32) {
		closed = id
		closedCh <- struct{}{}
	})

	clientConn := wire.NewConn(client)
	require.NoError(t, link.Send(wire.TripResponse{Status: wire.Success, Detail: "done"}))

	m, ok := clientConn.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, &wire.TripResponse{Status: wire.Success, Detail: "done"}, m)

	client.Close()
	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("onClose was never invoked after the peer closed")
	}
	assert.Equal(t, uint32(5), closed)

	inv.Wait()
}

func TestPassengerLink_OnMessageInvokedForInboundFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := net.Pipe()
	inv := &actor.TrackingInvoker{}

	received := make(chan wire.Message, 1)
	link := New(7, wire.NewConn(server), inv, logging.New(nil), func(id uint32, m wire.Message) {
		received <- m
	}, func(id uint32) {})

	clientConn := wire.NewConn(client)
	require.NoError(t, clientConn.Send(wire.Listening{}))

	select {
	case m := <-received:
		assert.Equal(t, &wire.Listening{}, m)
	case <-time.After(time.Second):
		t.Fatal("onMessage was never invoked")
	}

	link.Close()
	client.Close()
	inv.Wait()
}
