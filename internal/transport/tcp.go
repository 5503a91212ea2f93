package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"raceserver/internal/idgen"
	"raceserver/internal/protocol"
	"raceserver/internal/registry"
)

func (l *Layer) acceptLoop(ctx context.Context) {
	for {
		nc, err := l.tcpListener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("transport: tcp accept error", "err", err)
			continue
		}
		go l.serveTCP(ctx, nc)
	}
}

func (l *Layer) serveTCP(ctx context.Context, nc net.Conn) {
	addr := nc.RemoteAddr().String()
	connectionID := idgen.ConnectionID(nc.RemoteAddr())

	conn := newConn(connectionID, addr, nc)
	l.registry.Register(&registry.Info{
		ConnectionID:  connectionID,
		Address:       addr,
		ConnectedAt:   time.Now(),
		LastHeartbeat: time.Now(),
		Sink:          conn,
	})
	l.metrics.ActiveConnections.Add(1)

	slog.Debug("transport: tcp connection accepted", "connection_id", connectionID, "remote", addr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		l.runWriter(nc, conn)
	}()

	l.runReader(ctx, nc, conn)

	conn.Close()
	nc.Close()
	<-writerDone
	l.dropLimiter(connectionID)
	l.registry.Unregister(connectionID)
	l.metrics.ActiveConnections.Add(-1)
	slog.Debug("transport: tcp connection closed", "connection_id", connectionID, "remote", addr)
}

// runWriter drains conn's two lanes, always preferring a pending critical
// message over a droppable one, until conn is closed.
func (l *Layer) runWriter(nc net.Conn, conn *Conn) {
	for {
		select {
		case env := <-conn.critical:
			if err := protocol.WriteFrame(nc, env); err != nil {
				return
			}
			continue
		default:
		}
		select {
		case env := <-conn.critical:
			if err := protocol.WriteFrame(nc, env); err != nil {
				return
			}
		case env := <-conn.droppable:
			if err := protocol.WriteFrame(nc, env); err != nil {
				return
			}
		case <-conn.done:
			return
		}
	}
}

// runReader reads length-prefixed envelopes until the connection errs out,
// closes, or the context is canceled. Each accepted message is rate
// limited; a connection that exceeds ControlMessagesPerSecond is dropped
// rather than merely throttled, matching spec.md's "abusive client"
// handling.
func (l *Layer) runReader(ctx context.Context, nc net.Conn, conn *Conn) {
	limiter := l.limiterFor(conn.ConnectionID)
	for {
		env, err := protocol.ReadFrame(nc)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("transport: tcp read error", "connection_id", conn.ConnectionID, "err", err)
			}
			return
		}
		l.metrics.MessagesIn.Add(1)

		if !limiter.Allow() {
			slog.Warn("transport: control rate limit exceeded, disconnecting", "connection_id", conn.ConnectionID)
			return
		}

		l.registry.Touch(conn.ConnectionID, time.Now())

		select {
		case l.inbound <- Inbound{ConnectionID: conn.ConnectionID, Addr: conn.Address, Env: env}:
		case <-ctx.Done():
			return
		}
	}
}
