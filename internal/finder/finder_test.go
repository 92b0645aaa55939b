package finder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/geo"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

type fakeHub struct {
	mu       sync.Mutex
	offers   []uint32
	removed  bool
	connected bool
	response wire.TripStatus
}

func (f *fakeHub) DispatchOffer(passengerID, driverID uint32, source, destination geo.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, driverID)
}

func (f *fakeHub) RemoveDriverFinder(passengerID uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = true
}

func (f *fakeHub) ConnectWithPassenger(passengerID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeHub) SendTripResponse(passengerID uint32, status wire.TripStatus, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response = status
}

func (f *fakeHub) snapshotOffers() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint32, len(f.offers))
	copy(out, f.offers)
	return out
}

func (f *fakeHub) lastResponse() wire.TripStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response
}

func (f *fakeHub) isConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func newTestConfig() config.Config {
	c := config.Default()
	c.MaxDispatchDistance = 10
	c.OfferTimeout = 30 * time.Millisecond
	return c
}

func TestFinder_TiedDistanceBreaksByIDAscending(t *testing.T) {
	defer goleak.VerifyNone(t)

	positions := map[uint32]geo.Position{
		9: {X: 3, Y: 0},
		4: {X: 3, Y: 0},
		6: {X: 3, Y: 0},
	}
	hub := &fakeHub{}
	log := logging.New(nil)
	inv := &actor.TrackingInvoker{}

	f := New(1, geo.Position{X: 0, Y: 0}, geo.Position{X: 1, Y: 1}, positions, hub, newTestConfig(), log, inv)
	f.Start()

	f.HandleACK(4, false)
	require.Eventually(t, func() bool { return len(hub.snapshotOffers()) >= 2 }, time.Second, time.Millisecond)
	f.HandleACK(6, false)
	require.Eventually(t, func() bool { return len(hub.snapshotOffers()) >= 3 }, time.Second, time.Millisecond)
	f.HandleACK(9, true)
	require.Eventually(t, func() bool { return hub.removed }, time.Second, time.Millisecond)

	assert.Equal(t, []uint32{4, 6, 9}, hub.snapshotOffers())
	inv.Wait()
}

func TestFinder_OffersInNonDecreasingDistanceOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	positions := map[uint32]geo.Position{
		1: {X: 9, Y: 0},  // distance 9
		2: {X: 2, Y: 0},  // distance 2
		3: {X: 5, Y: 0},  // distance 5
	}
	hub := &fakeHub{}
	log := logging.New(nil)
	inv := &actor.TrackingInvoker{}

	f := New(7, geo.Position{X: 0, Y: 0}, geo.Position{X: 10, Y: 10}, positions, hub, newTestConfig(), log, inv)
	f.Start()

	require.Eventually(t, func() bool { return len(hub.snapshotOffers()) >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint32{2}, hub.snapshotOffers())

	f.HandleACK(2, false)
	require.Eventually(t, func() bool { return len(hub.snapshotOffers()) >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint32{2, 3}, hub.snapshotOffers())

	f.HandleACK(3, true)
	require.Eventually(t, func() bool { return hub.removed }, time.Second, time.Millisecond)
	inv.Wait()
}

func TestFinder_ExcludesCandidatesBeyondMaxDispatchDistance(t *testing.T) {
	defer goleak.VerifyNone(t)

	positions := map[uint32]geo.Position{
		1: {X: 50, Y: 50}, // far outside MaxDispatchDistance
	}
	hub := &fakeHub{}
	log := logging.New(nil)
	inv := &actor.TrackingInvoker{}

	f := New(1, geo.Position{X: 0, Y: 0}, geo.Position{X: 1, Y: 1}, positions, hub, newTestConfig(), log, inv)
	f.Start()

	require.Eventually(t, func() bool { return hub.isConnected() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return hub.lastResponse() == wire.Error }, time.Second, time.Millisecond)
	assert.Empty(t, hub.snapshotOffers())
	inv.Wait()
}

func TestFinder_OfferTimeoutAdvancesToNextCandidate(t *testing.T) {
	defer goleak.VerifyNone(t)

	positions := map[uint32]geo.Position{
		1: {X: 1, Y: 0},
		2: {X: 2, Y: 0},
	}
	hub := &fakeHub{}
	log := logging.New(nil)
	inv := &actor.TrackingInvoker{}

	f := New(3, geo.Position{X: 0, Y: 0}, geo.Position{X: 5, Y: 5}, positions, hub, newTestConfig(), log, inv)
	f.Start()

	// Never ACK driver 1: its offer timeout should fire and move on to 2.
	require.Eventually(t, func() bool { return len(hub.snapshotOffers()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint32{1, 2}, hub.snapshotOffers())

	f.HandleACK(2, true)
	require.Eventually(t, func() bool { return hub.removed }, time.Second, time.Millisecond)
	inv.Wait()
}
