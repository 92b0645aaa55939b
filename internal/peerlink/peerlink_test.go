package peerlink

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

func TestPeerLink_OnMessageAndOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := net.Pipe()
	inv := &actor.TrackingInvoker{}

	received := make(chan wire.Message, 1)
	closedCh := make(chan uint32, 1)

	link := New(3, wire.NewConn(server), inv, logging.New(nil),
		func(id uint32, m wire.Message) { received <- m },
		func(id uint32) { closedCh <- id })
	assert.Equal(t, uint32(3), link.PeerID)

	clientConn := wire.NewConn(client)
	require.NoError(t, clientConn.Send(wire.Election{SenderID: 3}))

	select {
	case m := <-received:
		assert.Equal(t, &wire.Election{SenderID: 3}, m)
	case <-time.After(time.Second):
		t.Fatal("onMessage was never invoked")
	}

	client.Close()
	select {
	case id := <-closedCh:
		assert.Equal(t, uint32(3), id)
	case <-time.After(time.Second):
		t.Fatal("onClose was never invoked")
	}

	inv.Wait()
}

func TestPeerLink_SendAfterPeerCloseFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	server, client := net.Pipe()
	inv := &actor.TrackingInvoker{}

	closedCh := make(chan uint32, 1)
	link := New(4, wire.NewConn(server), inv, logging.New(nil),
		func(id uint32, m wire.Message) {},
		func(id uint32) { closedCh <- id })

	client.Close()

	// Wait for the read loop to observe the close and fire onClose, so
	// the Send below runs against a link that is already torn down.
	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("onClose was never invoked after peer closed")
	}

	err := link.Send(wire.Alive{ResponderID: 4})
	assert.Error(t, err)

	inv.Wait()
}
