// Package paymentlink implements PaymentLink (spec.md §4.1): a
// one-shot request/response channel to the payment service.
package paymentlink

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jbcastro/concu-rideshare/internal/wire"
)

// Link targets the payment service at host:port. Each request method
// is one-shot: it opens a fresh connection, writes a single request,
// reads a single response, and closes, mirroring spec.md §4.1's "PaymentLink:
// one-shot request/response channel" and §2's description of the
// payment collaborator as a stateless authorize/collect endpoint.
type Link struct {
	host string
	port int
}

// New builds a Link targeting the payment service's fixed port.
func New(host string, port int) *Link {
	return &Link{host: host, port: port}
}

func (l *Link) dial() (*wire.Conn, error) {
	addr := net.JoinHostPort(l.host, strconv.Itoa(l.port))
	return wire.Dial("tcp", addr)
}

// AuthPayment authorizes a passenger's fare before a trip is
// requested. Called by the passenger process, not the driver, but
// shares this one-shot request/response shape (spec.md §6).
func (l *Link) AuthPayment(passengerID uint32) (bool, error) {
	conn, err := l.dial()
	if err != nil {
		return false, fmt.Errorf("paymentlink: dial: %w", err)
	}
	defer conn.Close()

	if err := conn.Send(wire.AuthPayment{PassengerID: passengerID}); err != nil {
		return false, fmt.Errorf("paymentlink: send AuthPayment: %w", err)
	}
	m, ok := conn.ReadMessage()
	if !ok {
		return false, fmt.Errorf("paymentlink: no response to AuthPayment")
	}
	resp, ok := m.(*wire.AuthPayment)
	if !ok || resp.Response == nil {
		return false, fmt.Errorf("paymentlink: unexpected response %#v", m)
	}
	return *resp.Response, nil
}

// CollectPayment is issued by a driver's Hub once a trip completes
// (spec.md §4.4 GoTo: "trigger CollectMoneyPassenger").
func (l *Link) CollectPayment(driverID, passengerID uint32) (bool, error) {
	conn, err := l.dial()
	if err != nil {
		return false, fmt.Errorf("paymentlink: dial: %w", err)
	}
	defer conn.Close()

	if err := conn.Send(wire.CollectPayment{DriverID: driverID, PassengerID: passengerID}); err != nil {
		return false, fmt.Errorf("paymentlink: send CollectPayment: %w", err)
	}
	m, ok := conn.ReadMessage()
	if !ok {
		return false, fmt.Errorf("paymentlink: no response to CollectPayment")
	}
	resp, ok := m.(*wire.CollectPayment)
	if !ok || resp.Response == nil {
		return false, fmt.Errorf("paymentlink: unexpected response %#v", m)
	}
	return *resp.Response, nil
}
