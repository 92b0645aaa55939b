// Command driver runs one driver process: it joins the peer mesh,
// participates in leader election, and (if elected) dispatches
// passenger trips while always running its own local TripEngine.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jbcastro/concu-rideshare/internal/actor"
	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/finder"
	"github.com/jbcastro/concu-rideshare/internal/geo"
	"github.com/jbcastro/concu-rideshare/internal/hub"
	"github.com/jbcastro/concu-rideshare/internal/listener"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/paymentlink"
	"github.com/jbcastro/concu-rideshare/internal/trip"
)

var (
	app      = kingpin.New("driver", "Ride-hailing dispatcher driver process.")
	driverID = app.Arg("id", "This driver's id (also its port offset and election priority).").Required().Uint32()
	host     = app.Flag("host", "Host all peer/passenger sockets bind and dial against.").Default("0.0.0.0").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg := config.FromEnv()
	log := logging.New(map[string]interface{}{"driver_id": *driverID})
	log.Infof("starting driver %d (test_mode=%v, take_trip_probability=%.2f)", *driverID, cfg.TestMode, cfg.TakeTripProbability)

	invoker := actor.GoroutineInvoker{}
	payment := paymentlink.New(*host, config.PaymentPort)

	newFinder := func(passengerID uint32, source, destination geo.Position, positions map[uint32]geo.Position, h *hub.Hub) hub.Finder {
		f := finder.New(passengerID, source, destination, positions, h, cfg, log, invoker)
		f.Start()
		return f
	}

	h := hub.New(*driverID, cfg, log, invoker, payment, newFinder)
	h.SetDialPassenger(h.DialPassenger(*host))

	engine := trip.New(*driverID, cfg, log, h, invoker)
	h.SetTripEngine(engine)

	h.Start()
	engine.Start()

	l := listener.New(*driverID, *host, h, log, invoker)
	l.DialSweep()
	if err := l.Serve(); err != nil {
		log.Fatalf("could not start listener: %v", err)
	}
	h.StartElection()

	waitForShutdown(log)
}

func waitForShutdown(log logging.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")
}
