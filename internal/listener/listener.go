// Package listener implements ConnectionListener (spec.md §4.5): the
// startup dial sweep plus the accept loop that reads the
// identification preamble and wires a socket to a PeerLink or
// PassengerLink.
package listener

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/hub"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/passengerlink"
	"github.com/jbcastro/concu-rideshare/internal/peerlink"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// Listener owns the driver's inbound TCP socket.
type Listener struct {
	selfID uint32
	host   string
	hub    *hub.Hub
	log    logging.Logger
	invoker actor.Invoker
}

// New builds a Listener for the given driver id.
func New(selfID uint32, host string, h *hub.Hub, log logging.Logger, invoker actor.Invoker) *Listener {
	return &Listener{
		selfID:  selfID,
		host:    host,
		hub:     h,
		log:     log.WithFields(map[string]interface{}{"component": "listener", "driver_id": selfID}),
		invoker: invoker,
	}
}

// DialSweep dials every id in [0, MaxDrivers) at the well-known driver
// port, best-effort (spec.md §4.5 and the recovered startup-dial
// behavior in SPEC_FULL.md: a failed dial, because nobody is
// listening there yet, is logged at debug level and skipped, not
// fatal). It blocks until every dial attempt has returned.
func (l *Listener) DialSweep() {
	var wg sync.WaitGroup
	for id := uint32(0); id < config.MaxDrivers; id++ {
		if id == l.selfID {
			continue
		}
		wg.Add(1)
		go func(peerID uint32) {
			defer wg.Done()
			l.dialPeer(peerID)
		}(id)
	}
	wg.Wait()
}

func (l *Listener) dialPeer(peerID uint32) {
	addr := net.JoinHostPort(l.host, strconv.Itoa(config.DriverPort(peerID)))
	conn, err := wire.Dial("tcp", addr)
	if err != nil {
		l.log.Debugf("dial sweep: peer %d not up yet (%v)", peerID, err)
		return
	}
	if err := conn.Send(wire.Identification{ID: l.selfID, Type_: wire.TypeDriver, ProtocolVersion: config.ProtocolVersion}); err != nil {
		l.log.Debugf("dial sweep: identification to peer %d failed: %v", peerID, err)
		_ = conn.Close()
		return
	}
	link := peerlink.New(peerID, conn, l.invoker, l.log, l.hub.HandlePeerMessage, l.hub.RemovePeer)
	l.hub.RegisterPeer(peerID, link)
	l.log.Infof("connected to peer %d", peerID)
}

// Serve binds the driver's own listening port and accepts
// connections forever. Each accepted socket reads one identification
// line and is wired to either a PeerLink or the transient
// passenger-inbound flow (spec.md §4.5).
func (l *Listener) Serve() error {
	addr := net.JoinHostPort(l.host, strconv.Itoa(config.DriverPort(l.selfID)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listener: bind %s: %w", addr, err)
	}
	l.log.Infof("listening on %s", addr)

	l.invoker.Spawn(func() {
		for {
			raw, err := ln.Accept()
			if err != nil {
				l.log.Errorf("accept failed: %v", err)
				return
			}
			l.invoker.Spawn(func() {
				l.handleAccepted(wire.NewConn(raw))
			})
		}
	})
	return nil
}

func (l *Listener) handleAccepted(conn *wire.Conn) {
	m, ok := conn.ReadMessage()
	if !ok {
		_ = conn.Close()
		return
	}
	id, ok := m.(*wire.Identification)
	if !ok {
		l.log.Warnf("first frame was not an Identification: %#v", m)
		_ = conn.Close()
		return
	}
	if compatible, err := config.CheckPeerVersion(id.ProtocolVersion); err != nil || !compatible {
		l.log.Warnf("rejecting peer %d: incompatible protocol version %q (err: %v)", id.ID, id.ProtocolVersion, err)
		_ = conn.Close()
		return
	}

	switch id.Type_ {
	case wire.TypeDriver:
		link := peerlink.New(id.ID, conn, l.invoker, l.log, l.hub.HandlePeerMessage, l.hub.RemovePeer)
		l.hub.RegisterPeer(id.ID, link)
		l.log.Infof("accepted peer %d", id.ID)
	case wire.TypePassenger:
		l.handlePassengerInbound(id.ID, conn)
	default:
		l.log.Warnf("unknown identification type %q", id.Type_)
		_ = conn.Close()
	}
}

// handlePassengerInbound implements spec.md §4.5's type='P' branch:
// read one TripRequest then a Listening ack, forward RedirectNewTrip,
// reply RequestDelivered, then keep the socket registered as the
// passenger's transient inbound link so an early disconnect is still
// observed.
func (l *Listener) handlePassengerInbound(passengerID uint32, conn *wire.Conn) {
	first, ok := conn.ReadMessage()
	if !ok {
		_ = conn.Close()
		return
	}
	req, ok := first.(*wire.TripRequest)
	if !ok {
		l.log.Warnf("expected TripRequest from passenger %d, got %#v", passengerID, first)
		_ = conn.Close()
		return
	}

	second, ok := conn.ReadMessage()
	if !ok {
		_ = conn.Close()
		return
	}
	if _, ok := second.(*wire.Listening); !ok {
		l.log.Warnf("expected Listening from passenger %d, got %#v", passengerID, second)
		_ = conn.Close()
		return
	}

	l.hub.RedirectNewTrip(passengerID, req.PassengerLocation, req.Destination)
	if err := conn.Send(wire.TripResponse{Status: wire.RequestDelivered, Detail: "request delivered"}); err != nil {
		l.log.Warnf("failed to ack passenger %d: %v", passengerID, err)
		return
	}

	link := passengerlink.New(passengerID, conn, l.invoker, l.log, l.hub.HandlePassengerMessage, l.hub.RemovePassenger)
	l.hub.RegisterPassengerLink(passengerID, link)
}
