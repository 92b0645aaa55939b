// Command passenger is the thin client spec.md §2 describes: it
// authorizes payment, broadcasts a trip request to the driver mesh,
// then listens for whichever driver commits to contact it directly.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/geo"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/paymentlink"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// maxRequestAttempts bounds the passenger-side retry loop (SPEC_FULL.md
// "supplemented features"): spec.md §8 scenario 5 describes the retry
// without naming a bound, and this bound is this repo's own choice.
const maxRequestAttempts = 3

// listenTimeout is spec.md §5's "Passenger-listen timeout (10 s)".
const listenTimeout = 10 * time.Second

type spec struct {
	id     uint32
	origin geo.Position
	dest   geo.Position
}

func main() {
	log := logging.New(map[string]interface{}{"component": "passenger"})

	s, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: passenger id=<u32> origin=(x,y) dest=(x,y)")
		log.Fatalf("%v", err)
	}

	payment := paymentlink.New("0.0.0.0", config.PaymentPort)
	approved, err := payment.AuthPayment(s.id)
	if err != nil {
		log.Fatalf("payment authorization failed: %v", err)
	}
	if !approved {
		color.Red("payment not authorized, cannot request a trip")
		os.Exit(1)
	}

	for attempt := 1; attempt <= maxRequestAttempts; attempt++ {
		log.Infof("requesting trip, attempt %d/%d", attempt, maxRequestAttempts)
		if runTrip(s, log) {
			return
		}
		color.Yellow("no driver contacted us in time, retrying...")
	}
	color.Red("giving up after %d attempts", maxRequestAttempts)
	os.Exit(1)
}

// runTrip opens the passenger's listener, broadcasts the request to
// every driver, then waits for a single inbound driver connection,
// printing TripResponse updates until a terminal status arrives.
// Returns true once the trip reaches a terminal (Success or Error)
// outcome.
func runTrip(s spec, log logging.Logger) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(config.PassengerPort(s.id))))
	if err != nil {
		log.Fatalf("could not listen on passenger port: %v", err)
	}
	defer ln.Close()

	broadcastRequest(s, log)

	type accepted struct {
		conn net.Conn
		err  error
	}
	result := make(chan accepted, 1)
	go func() {
		c, err := ln.Accept()
		result <- accepted{c, err}
	}()

	select {
	case a := <-result:
		if a.err != nil {
			log.Errorf("accept failed: %v", a.err)
			return false
		}
		return drainResponses(wire.NewConn(a.conn))
	case <-time.After(listenTimeout):
		return false
	}
}

func broadcastRequest(s spec, log logging.Logger) {
	for id := uint32(0); id < config.MaxDrivers; id++ {
		addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(config.DriverPort(id)))
		conn, err := wire.Dial("tcp", addr)
		if err != nil {
			continue
		}
		go func(c *wire.Conn) {
			defer c.Close()
			if err := c.Send(wire.Identification{ID: s.id, Type_: wire.TypePassenger, ProtocolVersion: config.ProtocolVersion}); err != nil {
				return
			}
			if err := c.Send(wire.TripRequest{PassengerID: s.id, PassengerLocation: s.origin, Destination: s.dest}); err != nil {
				return
			}
			if err := c.Send(wire.Listening{}); err != nil {
				return
			}
			m, ok := c.ReadMessage()
			if !ok {
				return
			}
			if resp, ok := m.(*wire.TripResponse); ok {
				printStatus(*resp)
			}
		}(conn)
	}
	log.Debugf("broadcast trip request %d to all driver ports", s.id)
}

func drainResponses(conn *wire.Conn) bool {
	defer conn.Close()
	for {
		m, ok := conn.ReadMessage()
		if !ok {
			return false
		}
		resp, ok := m.(*wire.TripResponse)
		if !ok {
			continue
		}
		printStatus(*resp)
		if resp.Status == wire.Success || resp.Status == wire.Error {
			return true
		}
	}
}

func printStatus(resp wire.TripResponse) {
	switch resp.Status {
	case wire.Info, wire.RequestDelivered:
		color.Cyan("[%s] %s", resp.Status, resp.Detail)
	case wire.Success:
		color.Green("[%s] %s", resp.Status, resp.Detail)
	case wire.Error:
		color.Red("[%s] %s", resp.Status, resp.Detail)
	}
}

// parseArgs parses the spec.md §6 CLI grammar:
// id=<u32> origin=(x,y) dest=(x,y)
func parseArgs(args []string) (spec, error) {
	var s spec
	var haveID, haveOrigin, haveDest bool

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "id="):
			v, err := strconv.ParseUint(strings.TrimPrefix(arg, "id="), 10, 32)
			if err != nil {
				return spec{}, fmt.Errorf("bad id: %w", err)
			}
			s.id = uint32(v)
			haveID = true
		case strings.HasPrefix(arg, "origin="):
			p, err := parsePoint(strings.TrimPrefix(arg, "origin="))
			if err != nil {
				return spec{}, fmt.Errorf("bad origin: %w", err)
			}
			s.origin = p
			haveOrigin = true
		case strings.HasPrefix(arg, "dest="):
			p, err := parsePoint(strings.TrimPrefix(arg, "dest="))
			if err != nil {
				return spec{}, fmt.Errorf("bad dest: %w", err)
			}
			s.dest = p
			haveDest = true
		default:
			return spec{}, fmt.Errorf("unrecognized argument %q", arg)
		}
	}
	if !haveID || !haveOrigin || !haveDest {
		return spec{}, fmt.Errorf("missing one of id=, origin=, dest=")
	}
	return s, nil
}

func parsePoint(raw string) (geo.Position, error) {
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return geo.Position{}, fmt.Errorf("expected (x,y), got %q", raw)
	}
	x, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return geo.Position{}, err
	}
	y, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		return geo.Position{}, err
	}
	return geo.Position{X: uint32(x), Y: uint32(y)}, nil
}
