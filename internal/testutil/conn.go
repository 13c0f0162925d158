package testutil

import (
	"net"
	"sync"
)

// Datagram is one WriteTo call seen by a RecordingConn.
type Datagram struct {
	Addr string
	Data []byte
}

// RecordingConn is a PacketWriter that records every datagram. A non-nil
// entry in Fail makes sends to that address return the error.
type RecordingConn struct {
	mu   sync.Mutex
	sent []Datagram
	Fail map[string]error
}

func (c *RecordingConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Fail[addr.String()]; err != nil {
		return 0, err
	}
	c.sent = append(c.sent, Datagram{Addr: addr.String(), Data: append([]byte(nil), p...)})
	return len(p), nil
}

// Sent returns a copy of the recorded datagrams.
func (c *RecordingConn) Sent() []Datagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Datagram(nil), c.sent...)
}
