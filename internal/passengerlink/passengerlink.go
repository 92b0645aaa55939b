// Package passengerlink implements PassengerLink (spec.md §4.1): the
// exclusive framed channel to one passenger process.
package passengerlink

import (
	"sync"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// PassengerLink owns one TCP connection's framing to a passenger.
// Created lazily when a driver commits to a passenger, or by
// ConnectionListener for the transient passenger-inbound socket.
// Destroyed on read-EOF; destruction aborts any in-flight trip for
// that passenger (spec.md §3 "Lifecycles").
type PassengerLink struct {
	PassengerID uint32

	conn    *wire.Conn
	log     logging.Logger
	invoker actor.Invoker

	onMessage func(passengerID uint32, m wire.Message)
	onClose   func(passengerID uint32)

	closeOnce sync.Once
}

// New wraps an already-established connection to passengerID and
// starts its read loop.
func New(passengerID uint32, conn *wire.Conn, invoker actor.Invoker, log logging.Logger, onMessage func(uint32, wire.Message), onClose func(uint32)) *PassengerLink {
	p := &PassengerLink{
		PassengerID: passengerID,
		conn:        conn,
		log:         log.WithFields(map[string]interface{}{"component": "passengerlink", "passenger_id": passengerID}),
		invoker:     invoker,
		onMessage:   onMessage,
		onClose:     onClose,
	}
	invoker.Spawn(p.poll)
	return p
}

// Send writes a TripResponse (or any wire.Message) to the passenger.
func (p *PassengerLink) Send(m wire.Message) error {
	if err := p.conn.Send(m); err != nil {
		p.log.Warnf("send failed, tearing down link: %v", err)
		p.closeLink()
		return err
	}
	return nil
}

// Close tears down the socket directly, without waiting for EOF.
func (p *PassengerLink) Close() {
	_ = p.conn.Close()
}

func (p *PassengerLink) poll() {
	for {
		m, ok := p.conn.ReadMessage()
		if !ok {
			p.closeLink()
			return
		}
		p.onMessage(p.PassengerID, m)
	}
}

func (p *PassengerLink) closeLink() {
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
		if p.onClose != nil {
			p.onClose(p.PassengerID)
		}
	})
}
