// Package metrics is a small atomic-counter registry plus a ticker-based
// periodic logger, generalizing the teacher's RunMetrics/KB-per-second
// reporting to the counters spec.md's TransportLayer and ServerLoop care
// about.
package metrics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Registry holds lock-free counters updated from many goroutines
// (reader/writer tasks per connection, the datagram receiver, the
// ServerLoop) and read back by the periodic logger.
type Registry struct {
	BytesIn                       atomic.Uint64
	BytesOut                      atomic.Uint64
	MessagesIn                    atomic.Uint64
	MessagesOut                   atomic.Uint64
	ClientsDisconnectedBackpressure atomic.Uint64
	MessagesDroppedCritical       atomic.Uint64
	MessagesDroppedDroppable      atomic.Uint64
	UDPWrongKind                  atomic.Uint64
	UDPAuthRejected               atomic.Uint64
	UDPSessionMismatch            atomic.Uint64
	ActiveConnections             atomic.Int64
	ActiveSessions                atomic.Int64
}

func New() *Registry {
	return &Registry{}
}

// Run logs a summary line every interval until ctx is canceled, mirroring
// the teacher's RunMetrics ticker loop.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastIn, lastOut uint64
	lastAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(lastAt).Seconds()
			if elapsed <= 0 {
				elapsed = interval.Seconds()
			}
			in := r.BytesIn.Load()
			out := r.BytesOut.Load()
			inRate := float64(in-lastIn) / elapsed
			outRate := float64(out-lastOut) / elapsed
			lastIn, lastOut = in, out
			lastAt = now

			slog.Info("metrics",
				"connections", r.ActiveConnections.Load(),
				"sessions", r.ActiveSessions.Load(),
				"in", humanize.Bytes(uint64(inRate))+"/s",
				"out", humanize.Bytes(uint64(outRate))+"/s",
				"dropped_critical", r.MessagesDroppedCritical.Load(),
				"dropped_droppable", r.MessagesDroppedDroppable.Load(),
				"disconnected_backpressure", r.ClientsDisconnectedBackpressure.Load(),
				"udp_wrong_kind", r.UDPWrongKind.Load(),
				"udp_auth_rejected", r.UDPAuthRejected.Load(),
				"udp_session_mismatch", r.UDPSessionMismatch.Load(),
			)
		}
	}
}
