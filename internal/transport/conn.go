// Package transport owns the dual-channel network boundary: a length-
// prefixed TCP/TLS stream per connection that carries every server->client
// message (telemetry included), and a single shared UDP socket that
// receives unreliable PlayerInput traffic. It is the only
// package that touches net.Conn/net.PacketConn directly; everything above it
// talks in terms of protocol.Envelope and registry.Info.
//
// Grounded on the per-connection goroutine-plus-channel pattern in
// server/internal/ws/handler.go, generalized from a single websocket send
// channel to the priority-aware bounded outbound queue spec.md §4.3 calls
// for (the reference implementation's mpsc channels were unbounded; this is
// a deliberate departure, not an oversight).
package transport

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"raceserver/internal/protocol"
)

// N_out is the bound on each connection's outbound queue, split evenly
// between the critical and droppable lanes.
const NOut = 256

// TCrit is how long a Send of a Critical message blocks against a full
// queue before the connection is torn down.
const TCrit = 100 * time.Millisecond

// Conn is one accepted TCP/TLS connection's outbound side. The reader side
// lives in tcp.go; both share this struct so the reader can trigger
// teardown through the same Close path as a writer failure.
type Conn struct {
	ConnectionID uint64
	Address      string

	nc        net.Conn
	critical  chan *protocol.Envelope
	droppable chan *protocol.Envelope
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// newConn wraps an accepted net.Conn. nc may be nil in tests that never
// exercise the actual socket.
func newConn(connectionID uint64, address string, nc net.Conn) *Conn {
	return &Conn{
		ConnectionID: connectionID,
		Address:      address,
		nc:           nc,
		critical:     make(chan *protocol.Envelope, NOut/2),
		droppable:    make(chan *protocol.Envelope, NOut/2),
		done:         make(chan struct{}),
	}
}

// Closed reports whether the connection's outbound queue has been torn
// down. Satisfies registry.Sink.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Send enqueues env according to its type's priority. A Critical message
// blocks up to TCrit against a full queue before the connection is closed
// out from under the caller; a Droppable message is discarded immediately
// when the queue is full.
func (c *Conn) Send(env *protocol.Envelope) bool {
	if c.closed.Load() {
		return false
	}
	switch env.Type.Priority() {
	case protocol.Critical:
		select {
		case c.critical <- env:
			return true
		case <-c.done:
			return false
		default:
		}
		timer := time.NewTimer(TCrit)
		defer timer.Stop()
		select {
		case c.critical <- env:
			return true
		case <-timer.C:
			slog.Warn("transport: critical send timed out, disconnecting", "connection_id", c.ConnectionID)
			c.Close()
			return false
		case <-c.done:
			return false
		}
	default:
		select {
		case c.droppable <- env:
			return true
		case <-c.done:
			return false
		default:
			return false
		}
	}
}

// Close tears down the outbound queues and, if this connection wraps a
// live socket, closes it too so a reader blocked in a Read unblocks.
// Idempotent. Satisfies registry.Sink.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.nc != nil {
			c.nc.Close()
		}
	})
}
