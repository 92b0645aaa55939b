// Package trip implements TripEngine (spec.md §4.4): the local trip
// lifecycle and position simulation.
package trip

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/geo"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// Hub is the subset of CentralDriver operations TripEngine needs,
// kept narrow per spec.md §9's cycle-avoidance note.
type Hub interface {
	NotifyPosition(pos geo.Position)
	ConnectWithPassenger(passengerID uint32) error
	SendTripResponse(passengerID uint32, status wire.TripStatus, detail string)
	SendCanHandleTripACK(passengerID, driverID uint32, response bool)
	CollectPayment(driverID, passengerID uint32) (bool, error)
}

type phase int

const (
	phaseIdle phase = iota
	phaseToPickup
	phaseToDestination
)

// Engine is one driver's trip state machine: one of
// {idle, committed, en_route_to_pickup, en_route_to_destination}
// (spec.md §3). Only one trip is active at a time.
type Engine struct {
	selfID uint32
	cfg    config.Config
	log    logging.Logger
	hub    Hub

	mailbox *actor.Mailbox
	invoker actor.Invoker

	realPos     geo.Position
	committed   *uint32
	pickup      geo.Position
	destination geo.Position
	currentPhase phase

	positionTicker *time.Ticker
	stopPosition   chan struct{}

	rng *rand.Rand
}

// New builds an idle Engine starting at the grid position spec.md §6
// assigns it: (5*id, 5*id) in TEST mode, (0,0) otherwise (position
// then drifts once the position loop starts).
func New(selfID uint32, cfg config.Config, log logging.Logger, hub Hub, invoker actor.Invoker) *Engine {
	start := geo.Position{}
	if cfg.TestMode {
		start = geo.Position{X: 5 * selfID, Y: 5 * selfID}
	}
	return &Engine{
		selfID:       selfID,
		cfg:          cfg,
		log:          log.WithFields(map[string]interface{}{"component": "trip", "driver_id": selfID}),
		hub:          hub,
		mailbox:      actor.NewMailbox(16),
		invoker:      invoker,
		realPos:      start,
		currentPhase: phaseIdle,
		stopPosition: make(chan struct{}),
		rng:          rand.New(rand.NewSource(int64(selfID) + 1)),
	}
}

// Start launches the mailbox and the periodic position-notify loop.
func (e *Engine) Start() {
	e.invoker.Spawn(e.mailbox.Run)
	e.invoker.Spawn(e.positionLoop)
}

// Stop ends both the mailbox and the position loop.
func (e *Engine) Stop() {
	close(e.stopPosition)
	e.mailbox.Stop()
}

func (e *Engine) positionLoop() {
	e.positionTicker = time.NewTicker(e.cfg.PositionInterval)
	defer e.positionTicker.Stop()
	for {
		select {
		case <-e.stopPosition:
			return
		case <-e.positionTicker.C:
			e.mailbox.Enqueue(e.publishPosition)
		}
	}
}

// ForcePositionUpdate is called by the Hub right after an election
// settles (spec.md §4.2 transitions 2 and 4), so the new leader
// learns about this driver without waiting a full PositionInterval.
func (e *Engine) ForcePositionUpdate() {
	e.mailbox.Enqueue(e.publishPosition)
}

func (e *Engine) publishPosition() {
	if e.committed != nil {
		e.hub.NotifyPosition(geo.Infinity)
		return
	}
	if !e.cfg.TestMode {
		e.realPos = geo.Drift(e.realPos, e.rng.Intn(21)-10, e.rng.Intn(21)-10)
	}
	e.hub.NotifyPosition(e.realPos)
}

// HandleOffer is CanHandleTrip (spec.md §4.4): the accept/decline
// decision for a candidate offer.
func (e *Engine) HandleOffer(passengerID uint32, source, destination geo.Position) {
	e.mailbox.Enqueue(func() {
		if e.committed != nil {
			e.hub.SendCanHandleTripACK(passengerID, e.selfID, false)
			return
		}
		if e.rng.Float64() >= e.cfg.TakeTripProbability {
			e.hub.SendCanHandleTripACK(passengerID, e.selfID, false)
			return
		}
		if err := e.hub.ConnectWithPassenger(passengerID); err != nil {
			e.log.Warnf("connect to passenger %d failed, declining: %v", passengerID, err)
			e.hub.SendCanHandleTripACK(passengerID, e.selfID, false)
			return
		}

		pid := passengerID
		e.committed = &pid
		e.pickup = source
		e.destination = destination
		e.currentPhase = phaseToPickup

		e.hub.SendTripResponse(passengerID, wire.Info, fmt.Sprintf("driver %d will arrive", e.selfID))
		e.hub.NotifyPosition(geo.Infinity)
		e.hub.SendCanHandleTripACK(passengerID, e.selfID, true)
		e.scheduleTick()
	})
}

// ClearPassenger aborts the current trip if passengerID matches the
// current commitment; idempotent otherwise (spec.md §4.4).
func (e *Engine) ClearPassenger(disconnected bool, passengerID uint32) {
	e.mailbox.Enqueue(func() {
		if e.committed == nil || *e.committed != passengerID {
			return
		}
		if disconnected {
			e.log.Infof("passenger %d disconnected mid-trip, aborting and returning to idle", passengerID)
		}
		e.committed = nil
		e.currentPhase = phaseIdle
	})
}

func (e *Engine) scheduleTick() {
	time.AfterFunc(e.cfg.TripStepDelay, func() {
		e.mailbox.Enqueue(e.goToTick)
	})
}

func (e *Engine) stepSize(remaining uint32) uint32 {
	if e.cfg.TestMode {
		return remaining
	}
	return uint32(e.rng.Intn(4))
}

// goToTick is GoTo (spec.md §4.4): one movement tick. If the
// committed passenger was cleared mid-trip (disconnect), the ticker
// self-cancels here by checking e.committed.
func (e *Engine) goToTick() {
	if e.committed == nil {
		return
	}
	pid := *e.committed

	var target geo.Position
	if e.currentPhase == phaseToPickup {
		target = e.pickup
	} else {
		target = e.destination
	}
	e.realPos = geo.StepToward(e.realPos, target, e.stepSize)

	if e.currentPhase == phaseToPickup && e.realPos == e.pickup {
		e.hub.SendTripResponse(pid, wire.Info, "I am at your door")
		e.currentPhase = phaseToDestination
		e.scheduleTick()
		return
	}
	if e.currentPhase == phaseToDestination && e.realPos == e.destination {
		e.hub.SendTripResponse(pid, wire.Success, fmt.Sprintf("arrived, trip complete for passenger %d", pid))
		e.finishTrip(pid)
		return
	}
	e.scheduleTick()
}

func (e *Engine) finishTrip(passengerID uint32) {
	ok, err := e.hub.CollectPayment(e.selfID, passengerID)
	if err != nil {
		e.log.Errorf("payment collection failed for passenger %d: %v", passengerID, err)
	} else if !ok {
		e.log.Warnf("payment declined at collect for passenger %d, call the police", passengerID)
	}
	e.committed = nil
	e.currentPhase = phaseIdle
}
