// Command payment runs the stateless payment service: it accepts one
// AuthPayment or CollectPayment request per connection and replies
// with the same message carrying a boolean Response (spec.md §6).
package main

import (
	"net"
	"os"
	"strconv"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jbcastro/concu-rideshare/internal/config"
	"github.com/jbcastro/concu-rideshare/internal/logging"
	"github.com/jbcastro/concu-rideshare/internal/wire"
)

var (
	app  = kingpin.New("payment", "Stateless trip payment authorize/collect service.")
	host = app.Flag("host", "Host to bind.").Default("0.0.0.0").String()
	port = app.Flag("port", "Port to bind.").Default(strconv.Itoa(config.PaymentPort)).Int()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logging.New(map[string]interface{}{"component": "payment"})

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("could not bind %s: %v", addr, err)
	}
	log.Infof("payment service listening on %s", addr)

	for {
		raw, err := ln.Accept()
		if err != nil {
			log.Errorf("accept failed: %v", err)
			continue
		}
		go handle(wire.NewConn(raw), log)
	}
}

func handle(conn *wire.Conn, log logging.Logger) {
	defer conn.Close()

	m, ok := conn.ReadMessage()
	if !ok {
		return
	}

	switch req := m.(type) {
	case *wire.AuthPayment:
		approved := true
		log.Infof("authorizing payment for passenger %d: %v", req.PassengerID, approved)
		_ = conn.Send(wire.AuthPayment{PassengerID: req.PassengerID, Response: &approved})
	case *wire.CollectPayment:
		approved := true
		log.Infof("collecting payment from passenger %d for driver %d: %v", req.PassengerID, req.DriverID, approved)
		_ = conn.Send(wire.CollectPayment{DriverID: req.DriverID, PassengerID: req.PassengerID, Response: &approved})
	default:
		log.Warnf("unexpected request %#v", m)
	}
}
