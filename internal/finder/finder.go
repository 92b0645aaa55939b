// Package finder implements DriverFinder (spec.md §4.3): the
// leader-only per-request offer sequencer.
package finder

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/geo"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// Hub is the subset of CentralDriver operations a DriverFinder needs,
// kept as a narrow interface (spec.md §9 "Actor graph with potential
// cycles": components refer to collaborators by id/interface, never
// shared mutable state, to avoid reference cycles between
// Hub/TripEngine/PeerLink/DriverFinder).
type Hub interface {
	DispatchOffer(passengerID, driverID uint32, source, destination geo.Position)
	RemoveDriverFinder(passengerID uint32)
	ConnectWithPassenger(passengerID uint32) error
	SendTripResponse(passengerID uint32, status wire.TripStatus, detail string)
}

type candidate struct {
	id       uint32
	distance uint32
}

// Finder is one in-flight dispatch, keyed by passenger id (spec.md
// §3 "DriverFinder instance").
type Finder struct {
	passengerID uint32
	source      geo.Position
	destination geo.Position

	queue  []candidate
	waiter *actor.Waiter

	hub     Hub
	cfg     config.Config
	log     logging.Logger
	mailbox *actor.Mailbox
	invoker actor.Invoker
}

// New ranks the candidates within MaxDispatchDistance ascending by
// distance (ties by id ascending, spec.md §4.3 steps 1-2) and builds
// an unstarted Finder. positions is a snapshot of the leader's
// PositionTable at request time.
func New(passengerID uint32, source, destination geo.Position, positions map[uint32]geo.Position, hub Hub, cfg config.Config, log logging.Logger, invoker actor.Invoker) *Finder {
	var candidates []candidate
	for id, pos := range positions {
		d := geo.Distance(pos, source)
		if d <= cfg.MaxDispatchDistance {
			candidates = append(candidates, candidate{id: id, distance: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})

	return &Finder{
		passengerID: passengerID,
		source:      source,
		destination: destination,
		queue:       candidates,
		waiter:      actor.NewWaiter(),
		hub:         hub,
		cfg:         cfg,
		log:         log.WithFields(map[string]interface{}{"component": "finder", "passenger_id": passengerID, "dispatch_id": uuid.NewString()}),
		mailbox:     actor.NewMailbox(4),
		invoker:     invoker,
	}
}

// Start launches the mailbox and issues the first offer.
func (f *Finder) Start() {
	f.invoker.Spawn(f.mailbox.Run)
	f.mailbox.Enqueue(f.offerNext)
}

// candidateKey names a candidate's registration with the Waiter, kept
// distinct from the bare driver id so log lines and the wait map share
// nothing but the lookup string.
func candidateKey(driverID uint32) string {
	return fmt.Sprintf("candidate-%d", driverID)
}

// HandleACK is called by the Hub when a CanHandleTripACK arrives for
// this passenger, whether routed locally or over a PeerLink. It only
// wakes the goroutine watching this candidate's offer; the mailbox
// handlers below (onCandidateResult/onCandidateTimeout) do the actual
// state transition.
func (f *Finder) HandleACK(driverID uint32, response bool) {
	f.waiter.Notify(candidateKey(driverID), response, f.cfg.OfferTimeout)
}

func (f *Finder) offerNext() {
	if len(f.queue) == 0 {
		f.exhausted()
		return
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	id := next.id
	f.log.Infof("offering trip to driver %d (distance %d)", id, next.distance)
	f.hub.DispatchOffer(f.passengerID, id, f.source, f.destination)

	key := candidateKey(id)
	acked := f.waiter.Register(key)
	f.invoker.Spawn(func() {
		select {
		case v := <-acked:
			f.mailbox.Enqueue(func() { f.onCandidateResult(id, v.(bool)) })
		case <-time.After(f.cfg.OfferTimeout):
			f.waiter.Forget(key)
			f.mailbox.Enqueue(func() { f.onCandidateTimeout(id) })
		}
	})
}

func (f *Finder) onCandidateResult(driverID uint32, response bool) {
	if response {
		f.log.Infof("driver %d accepted the trip", driverID)
		f.hub.RemoveDriverFinder(f.passengerID)
		f.mailbox.Stop()
		return
	}
	f.log.Infof("driver %d declined, advancing to next candidate", driverID)
	f.offerNext()
}

func (f *Finder) onCandidateTimeout(driverID uint32) {
	f.log.Infof("driver %d timed out, advancing to next candidate", driverID)
	f.offerNext()
}

func (f *Finder) exhausted() {
	f.log.Infof("no drivers near passenger %d", f.passengerID)
	if err := f.hub.ConnectWithPassenger(f.passengerID); err != nil {
		f.log.Warnf("could not reach passenger %d to report failure: %v", f.passengerID, err)
	} else {
		f.hub.SendTripResponse(f.passengerID, wire.Error, "no drivers near")
	}
	f.hub.RemoveDriverFinder(f.passengerID)
	f.mailbox.Stop()
}
