package paymentlink

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbcastro/concu-rideshare/internal/wire"
)

func startFakePaymentService(t *testing.T, approve bool) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			raw, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				conn := wire.NewConn(c)
				m, ok := conn.ReadMessage()
				if !ok {
					return
				}
				switch req := m.(type) {
				case *wire.AuthPayment:
					resp := approve
					_ = conn.Send(wire.AuthPayment{PassengerID: req.PassengerID, Response: &resp})
				case *wire.CollectPayment:
					resp := approve
					_ = conn.Send(wire.CollectPayment{DriverID: req.DriverID, PassengerID: req.PassengerID, Response: &resp})
				}
			}(raw)
		}
	}()

	return ln.Addr().String()
}

func TestLink_AuthPaymentApproved(t *testing.T) {
	addr := startFakePaymentService(t, true)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	l := New(host, port)
	ok, err := l.AuthPayment(42)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLink_CollectPaymentDeclined(t *testing.T) {
	addr := startFakePaymentService(t, false)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	l := New(host, port)
	ok, err := l.CollectPayment(3, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLink_DialFailureIsError(t *testing.T) {
	l := New("127.0.0.1", 1) // nothing listens on a privileged, unlikely-bound port
	_, err := l.AuthPayment(1)
	assert.Error(t, err)
}
