// Package peerlink implements PeerLink (spec.md §4.1): the exclusive
// framed channel to one remote driver.
package peerlink

import (
	"sync"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// PeerLink owns one TCP connection's framing to another driver.
// Created on connect/accept after identification, destroyed on
// read-EOF or write failure (spec.md §3 "Lifecycles").
type PeerLink struct {
	PeerID uint32

	conn    *wire.Conn
	log     logging.Logger
	invoker actor.Invoker

	onMessage func(peerID uint32, m wire.Message)
	onClose   func(peerID uint32)

	closeOnce sync.Once
}

// New wraps an already-identified connection to peerID and starts its
// read loop. onMessage is invoked for every inbound DriverMessage
// variant; onClose fires exactly once, when the read loop ends or a
// Send fails, whichever comes first, matching spec.md §4.1's on_close contract (RemovePeer then
// StartElection is the Hub's responsibility, not PeerLink's).
func New(peerID uint32, conn *wire.Conn, invoker actor.Invoker, log logging.Logger, onMessage func(uint32, wire.Message), onClose func(uint32)) *PeerLink {
	p := &PeerLink{
		PeerID:    peerID,
		conn:      conn,
		log:       log.WithFields(map[string]interface{}{"component": "peerlink", "peer_id": peerID}),
		invoker:   invoker,
		onMessage: onMessage,
		onClose:   onClose,
	}
	invoker.Spawn(p.poll)
	return p
}

// Send serializes and writes m, newline-terminated. Concurrent Send
// calls serialize at the wire level inside wire.Conn. A write failure
// marks the link dead by triggering the close path.
func (p *PeerLink) Send(m wire.Message) error {
	if err := p.conn.Send(m); err != nil {
		p.log.Warnf("send failed, tearing down link: %v", err)
		p.closeLink()
		return err
	}
	return nil
}

// Close tears down the underlying socket. The read loop then ends and
// fires onClose, unless it has already fired (it fires at most once).
func (p *PeerLink) Close() {
	_ = p.conn.Close()
}

func (p *PeerLink) poll() {
	for {
		m, ok := p.conn.ReadMessage()
		if !ok {
			p.closeLink()
			return
		}
		p.onMessage(p.PeerID, m)
	}
}

func (p *PeerLink) closeLink() {
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
		if p.onClose != nil {
			p.onClose(p.PeerID)
		}
	})
}
