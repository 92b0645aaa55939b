package wire

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	promlog "github.com/prometheus/common/log"
)

// MaxLineBytes bounds a single frame; the protocol has no length
// prefix (spec.md §6), so bufio.Scanner needs an explicit cap.
const MaxLineBytes = 1 << 20

// Conn wraps one net.Conn with newline-delimited JSON framing.
// Concurrent Send calls serialize at the wire level via writeMu
// (spec.md §4.1: "concurrent send calls must serialize at the wire
// level"), mirroring the single-writer discipline the teacher's
// transport.go gave each ReliableTransport.
type Conn struct {
	raw     net.Conn
	writeMu sync.Mutex
	scanner *bufio.Scanner
}

// NewConn wraps an established connection for line-framed JSON I/O.
func NewConn(raw net.Conn) *Conn {
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 4096), MaxLineBytes)
	return &Conn{raw: raw, scanner: scanner}
}

// Send serializes and writes one message, newline-terminated, holding
// writeMu for the duration so two goroutines calling Send never
// interleave partial frames.
func (c *Conn) Send(m Message) error {
	line, err := Encode(m)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.raw.Write(line); err != nil {
		return fmt.Errorf("wire: write failed, link is dead: %w", err)
	}
	return nil
}

// ReadMessage blocks for the next frame. It returns (nil, false) once
// the peer closed the connection or the scanner is otherwise exhausted, at
// which point the caller should tear down the link (spec.md §4.1
// on_close).
//
// A line that fails to parse is logged via prometheus/common/log (the
// same low-level logger the teacher's transport.go used for
// marshal/unmarshal failures) and skipped rather than treated as a
// connection error, per spec.md §7 ("Malformed message... log and
// discard the frame; connection stays up").
func (c *Conn) ReadMessage() (Message, bool) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		m, err := Decode(cp)
		if err != nil {
			promlog.Errorf("wire: dropping malformed frame from %s: %v", c.raw.RemoteAddr(), err)
			continue
		}
		return m, true
	}
	return nil, false
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr exposes the peer address for logging.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// Dial opens an outbound connection and wraps it.
func Dial(network, address string) (*Conn, error) {
	raw, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return NewConn(raw), nil
}
