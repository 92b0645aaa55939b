// Package hub implements Hub/CentralDriver (spec.md §4.2): the
// per-process coordinator owning peer and passenger link maps, leader
// identity, the driver-position table, message routing, and the
// Bully election driver.
package hub

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/geo"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/passengerlink"
	"github.com/jbcastro/concu-rideshare/internal/paymentlink"
	"github.com/jbcastro/concu-rideshare/internal/peerlink"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// electionState is one of {Idle, Electing, WaitingForCoordinator}
// (spec.md §4.2).
type electionState int

const (
	stateIdle electionState = iota
	stateElecting
	stateWaitingForCoordinator
)

// TripEngine is the subset of TripEngine operations the Hub drives.
type TripEngine interface {
	HandleOffer(passengerID uint32, source, destination geo.Position)
	ClearPassenger(disconnected bool, passengerID uint32)
	ForcePositionUpdate()
}

// Finder is the subset of DriverFinder operations the Hub drives.
type Finder interface {
	HandleACK(driverID uint32, response bool)
}

// FinderFactory builds a new DriverFinder for one dispatch; injected
// so hub does not import package finder directly (finder, in turn,
// declares its own narrow finder.Hub interface and does not import
// hub either).
type FinderFactory func(passengerID uint32, source, destination geo.Position, positions map[uint32]geo.Position, h *Hub) Finder

// Hub is one driver process's coordinator.
type Hub struct {
	id  uint32
	cfg config.Config
	log logging.Logger

	mailbox *actor.Mailbox
	invoker actor.Invoker

	leaderID      *uint32
	election      electionState
	electionTimer *time.Timer

	peers      map[uint32]*peerlink.PeerLink
	passengers map[uint32]*passengerlink.PassengerLink
	positions  map[uint32]geo.Position
	finders    map[uint32]Finder

	trip    TripEngine
	payment *paymentlink.Link

	newFinder      FinderFactory
	dialPassenger  func(passengerID uint32) (*passengerlink.PassengerLink, error)
}

// New constructs an unstarted Hub. trip is set later via SetTripEngine
// since TripEngine's own constructor needs a Hub handle — the two are
// wired together by the caller (cmd/driver) right after both exist,
// breaking the Hub<->TripEngine construction cycle without either
// holding a reference cycle at the struct level (spec.md §9).
func New(id uint32, cfg config.Config, log logging.Logger, invoker actor.Invoker, payment *paymentlink.Link, newFinder FinderFactory) *Hub {
	return &Hub{
		id:         id,
		cfg:        cfg,
		log:        log.WithFields(map[string]interface{}{"component": "hub", "driver_id": id}),
		mailbox:    actor.NewMailbox(64),
		invoker:    invoker,
		peers:      make(map[uint32]*peerlink.PeerLink),
		passengers: make(map[uint32]*passengerlink.PassengerLink),
		positions:  make(map[uint32]geo.Position),
		finders:    make(map[uint32]Finder),
		payment:    payment,
		newFinder:  newFinder,
	}
}

// SetTripEngine wires the local TripEngine after construction.
func (h *Hub) SetTripEngine(t TripEngine) {
	h.trip = t
}

// SetDialPassenger wires the outbound-passenger-connection factory
// after construction (see DialPassenger).
func (h *Hub) SetDialPassenger(dial func(passengerID uint32) (*passengerlink.PassengerLink, error)) {
	h.dialPassenger = dial
}

// Start launches the mailbox goroutine.
func (h *Hub) Start() {
	h.invoker.Spawn(h.mailbox.Run)
}

// ID returns this driver's id.
func (h *Hub) ID() uint32 {
	return h.id
}

// LeaderID reports the currently known leader, if any. Safe to call
// from any goroutine; blocks until the mailbox processes the read.
func (h *Hub) LeaderID() (uint32, bool) {
	type result struct {
		id uint32
		ok bool
	}
	reply := make(chan result, 1)
	h.mailbox.Enqueue(func() {
		if h.leaderID == nil {
			reply <- result{}
			return
		}
		reply <- result{id: *h.leaderID, ok: true}
	})
	r := <-reply
	return r.id, r.ok
}

// RegisterPeer installs a PeerLink (spec.md §3 PeerEntry: "Peers are
// inserted on successful connection"). Registering a peer does not by
// itself start an election; the caller triggers one explicitly once
// the startup dial sweep (spec.md §4.5) has settled.
func (h *Hub) RegisterPeer(id uint32, link *peerlink.PeerLink) {
	h.mailbox.Enqueue(func() {
		h.peers[id] = link
	})
}

// RemovePeer drops a PeerEntry and always starts a fresh election
// (spec.md §4.2 transition 1: "On peer disconnect ... enter
// Electing").
func (h *Hub) RemovePeer(id uint32) {
	h.mailbox.Enqueue(func() {
		h.log.Infof("peer %d disconnected", id)
		delete(h.peers, id)
		delete(h.positions, id)
		if h.leaderID != nil && *h.leaderID == id {
			h.leaderID = nil
		}
		h.startElectionLocked()
	})
}

// RemovePassenger drops a PassengerEntry and aborts any in-flight
// trip for that passenger.
func (h *Hub) RemovePassenger(id uint32) {
	h.mailbox.Enqueue(func() {
		delete(h.passengers, id)
		if h.trip != nil {
			h.trip.ClearPassenger(true, id)
		}
	})
}

// RemoveDriverFinder drops a DriverFinder once it is done.
func (h *Hub) RemoveDriverFinder(passengerID uint32) {
	h.mailbox.Enqueue(func() {
		delete(h.finders, passengerID)
	})
}

// StartElection triggers the initial election, used once the startup
// dial sweep completes (spec.md §4.2 transition 1, "on startup after
// peer discovery").
func (h *Hub) StartElection() {
	h.mailbox.Enqueue(h.startElectionLocked)
}

// HandlePeerMessage dispatches one inbound DriverMessage, routed here
// by a PeerLink's onMessage callback.
func (h *Hub) HandlePeerMessage(peerID uint32, m wire.Message) {
	h.mailbox.Enqueue(func() {
		switch msg := m.(type) {
		case *wire.Election:
			h.onElectionLocked(msg)
		case *wire.Alive:
			h.onAliveLocked()
		case *wire.Coordinator:
			h.onCoordinatorLocked(msg)
		case *wire.NotifyPosition:
			h.positions[msg.DriverID] = msg.DriverPosition
		case *wire.TripRequest:
			h.redirectNewTripLocked(msg.PassengerID, msg.PassengerLocation, msg.Destination)
		case *wire.CanHandleTrip:
			if h.trip != nil {
				h.trip.HandleOffer(msg.PassengerID, msg.PassengerLocation, msg.Destination)
			}
		case *wire.CanHandleTripACK:
			h.routeACKLocked(msg.PassengerID, msg.DriverID, msg.Response)
		default:
			h.log.Warnf("unexpected message from peer %d: %#v", peerID, m)
		}
	})
}

// HandlePassengerMessage handles inbound messages on the direct,
// committed passenger link; passengers do not normally send anything
// on this channel once connected (it exists to carry TripResponse
// out and to detect disconnect via EOF), so anything received here is
// unexpected and only logged.
func (h *Hub) HandlePassengerMessage(passengerID uint32, m wire.Message) {
	h.log.Warnf("unexpected message from passenger %d: %#v", passengerID, m)
}

// RedirectNewTrip is the entry point for a freshly arrived trip
// request, whether it came from the local ConnectionListener's
// passenger-inbound socket or was forwarded by a non-leader peer.
func (h *Hub) RedirectNewTrip(passengerID uint32, source, destination geo.Position) {
	h.mailbox.Enqueue(func() {
		h.redirectNewTripLocked(passengerID, source, destination)
	})
}

func (h *Hub) redirectNewTripLocked(passengerID uint32, source, destination geo.Position) {
	if h.leaderID != nil && *h.leaderID == h.id {
		snapshot := make(map[uint32]geo.Position, len(h.positions))
		for id, pos := range h.positions {
			snapshot[id] = pos
		}
		f := h.newFinder(passengerID, source, destination, snapshot, h)
		h.finders[passengerID] = f
		return
	}
	if h.leaderID != nil {
		if link, ok := h.peers[*h.leaderID]; ok {
			_ = link.Send(wire.TripRequest{PassengerID: passengerID, PassengerLocation: source, Destination: destination})
			return
		}
	}
	h.log.Warnf("dropping trip request for passenger %d: no leader known", passengerID)
}

// DispatchOffer delivers a CanHandleTrip offer to the named candidate,
// locally if it is this driver, else over its PeerLink.
func (h *Hub) DispatchOffer(passengerID, driverID uint32, source, destination geo.Position) {
	h.mailbox.Enqueue(func() {
		if driverID == h.id {
			if h.trip != nil {
				h.trip.HandleOffer(passengerID, source, destination)
			}
			return
		}
		link, ok := h.peers[driverID]
		if !ok {
			h.log.Warnf("candidate %d unreachable, treating offer as declined", driverID)
			h.routeACKLocked(passengerID, driverID, false)
			return
		}
		_ = link.Send(wire.CanHandleTrip{PassengerID: passengerID, DriverID: driverID, PassengerLocation: source, Destination: destination})
	})
}

// SendCanHandleTripACK is called by the local TripEngine to answer an
// offer; it is routed to the owning DriverFinder if this driver is
// the leader, else forwarded on to the leader.
func (h *Hub) SendCanHandleTripACK(passengerID, driverID uint32, response bool) {
	h.mailbox.Enqueue(func() {
		h.routeACKLocked(passengerID, driverID, response)
	})
}

func (h *Hub) routeACKLocked(passengerID, driverID uint32, response bool) {
	if h.leaderID != nil && *h.leaderID == h.id {
		if f, ok := h.finders[passengerID]; ok {
			f.HandleACK(driverID, response)
		}
		return
	}
	if h.leaderID != nil {
		if link, ok := h.peers[*h.leaderID]; ok {
			_ = link.Send(wire.CanHandleTripACK{PassengerID: passengerID, DriverID: driverID, Response: response})
		}
	}
}

// SendTripResponse writes a TripResponse to the matching
// PassengerLink, if one is currently registered.
func (h *Hub) SendTripResponse(passengerID uint32, status wire.TripStatus, detail string) {
	h.mailbox.Enqueue(func() {
		link, ok := h.passengers[passengerID]
		if !ok {
			h.log.Warnf("no passenger link for %d, dropping %s response", passengerID, status)
			return
		}
		_ = link.Send(wire.TripResponse{Status: status, Detail: detail})
	})
}

// NotifyPosition is NotifyPositionToLeader (spec.md §4.2): update the
// PositionTable directly if this driver is the leader, else forward
// to the leader's PeerLink. Dropped silently if no leader is known.
func (h *Hub) NotifyPosition(pos geo.Position) {
	h.mailbox.Enqueue(func() {
		if h.leaderID == nil {
			return
		}
		if *h.leaderID == h.id {
			h.positions[h.id] = pos
			return
		}
		if link, ok := h.peers[*h.leaderID]; ok {
			_ = link.Send(wire.NotifyPosition{DriverID: h.id, DriverPosition: pos})
		}
	})
}

// CollectPayment dials the payment service once a trip completes.
func (h *Hub) CollectPayment(driverID, passengerID uint32) (bool, error) {
	return h.payment.CollectPayment(driverID, passengerID)
}

// ConnectWithPassenger opens a new outbound connection to the
// passenger's fixed port and registers it as that passenger's
// PassengerLink, replacing any existing (e.g. transient inbound)
// entry. Dialing happens off the mailbox goroutine so a slow connect
// cannot stall unrelated Hub traffic; only the map mutation is
// serialized through the mailbox.
func (h *Hub) ConnectWithPassenger(passengerID uint32) error {
	link, err := h.dialPassenger(passengerID)
	if err != nil {
		return fmt.Errorf("hub: connect to passenger %d: %w", passengerID, err)
	}
	done := make(chan struct{})
	h.mailbox.Enqueue(func() {
		if old, ok := h.passengers[passengerID]; ok {
			old.Close()
		}
		h.passengers[passengerID] = link
		close(done)
	})
	<-done
	return nil
}

// RegisterPassengerLink installs an already-built PassengerLink, used
// by ConnectionListener for the transient inbound socket (spec.md
// §4.5).
func (h *Hub) RegisterPassengerLink(passengerID uint32, link *passengerlink.PassengerLink) {
	h.mailbox.Enqueue(func() {
		h.passengers[passengerID] = link
	})
}

// --- election (spec.md §4.2, Bully variant) ---

func (h *Hub) startElectionLocked() {
	h.leaderID = nil
	h.election = stateElecting
	h.stopElectionTimerLocked()

	var higher []uint32
	for id := range h.peers {
		if id > h.id {
			higher = append(higher, id)
		}
	}
	if len(higher) == 0 {
		h.declareSelfLeaderLocked()
		return
	}
	for _, id := range higher {
		if link, ok := h.peers[id]; ok {
			_ = link.Send(wire.Election{SenderID: h.id})
		}
	}
	h.armElectionTimeoutLocked()
}

func (h *Hub) armElectionTimeoutLocked() {
	h.electionTimer = time.AfterFunc(h.cfg.ElectionTimeout, func() {
		h.mailbox.Enqueue(func() {
			if h.election == stateElecting {
				h.declareSelfLeaderLocked()
			}
		})
	})
}

func (h *Hub) stopElectionTimerLocked() {
	if h.electionTimer != nil {
		h.electionTimer.Stop()
		h.electionTimer = nil
	}
}

func (h *Hub) declareSelfLeaderLocked() {
	id := h.id
	h.leaderID = &id
	h.election = stateIdle
	h.log.Infof("self-declared leader")
	for _, link := range h.peers {
		_ = link.Send(wire.Coordinator{LeaderID: h.id})
	}
	if h.trip != nil {
		h.trip.ForcePositionUpdate()
	}
}

func (h *Hub) onElectionLocked(msg *wire.Election) {
	// By construction (spec.md §4.2 step 2: a driver only sends
	// Election to peers with a higher id), msg.SenderID < h.id always
	// holds here.
	if link, ok := h.peers[msg.SenderID]; ok {
		_ = link.Send(wire.Alive{ResponderID: h.id})
	}
	h.startElectionLocked()
}

func (h *Hub) onAliveLocked() {
	// spec.md §9: deliberately no second timeout is armed here. A
	// missing subsequent Coordinator is only diagnosed on the next
	// peer event (spec.md §4.2 transition 3). This is the spec's
	// documented "stricter variant left unimplemented" open property.
	if h.election != stateElecting {
		return
	}
	h.stopElectionTimerLocked()
	h.election = stateWaitingForCoordinator
}

func (h *Hub) onCoordinatorLocked(msg *wire.Coordinator) {
	h.stopElectionTimerLocked()
	id := msg.LeaderID
	h.leaderID = &id
	h.election = stateIdle
	h.log.Infof("new leader is %d", id)
	if h.trip != nil {
		h.trip.ForcePositionUpdate()
	}
}

// DialPassenger builds the default dialPassenger implementation
// cmd/driver installs with SetDialPassenger: dial the passenger's
// fixed port and wrap the connection as a PassengerLink reporting back
// to this Hub. It is built after the Hub exists because the
// PassengerLink's onMessage/onClose callbacks are the Hub's own
// methods; SetDialPassenger also lets tests install another dialer.
func (h *Hub) DialPassenger(host string) func(uint32) (*passengerlink.PassengerLink, error) {
	return func(id uint32) (*passengerlink.PassengerLink, error) {
		port := config.PassengerPort(id)
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		conn, err := wire.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return passengerlink.New(id, conn, h.invoker, h.log, h.HandlePassengerMessage, h.RemovePassenger), nil
	}
}
