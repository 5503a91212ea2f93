package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"raceserver/internal/protocol"
)

func parsePlayerID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// SessionMembershipFunc reports whether playerID currently participates in
// or spectates the session identified by sessionID. The transport layer
// has no session state of its own; the ServerLoop wires this in at startup
// so handleDatagram can enforce spec.md's full datagram filter order
// (decode, auth, secret, session membership) before BindUDP/Touch have any
// side effect, rather than accepting the rebind/liveness effects first and
// rejecting the message only once it reaches the ServerLoop.
type SessionMembershipFunc func(playerID uuid.UUID, sessionID string) bool

// SetSessionMembership installs the session-membership predicate. Must be
// called once before Start.
func (l *Layer) SetSessionMembership(f SessionMembershipFunc) {
	l.sessionMembership = f
}

// TRebind is the minimum time a player's UDP address is held before a
// different source address is accepted as a rebind, guarding against an
// attacker racing a legitimate client's address change.
const TRebind = 2 * time.Second

func (l *Layer) receiveUDPLoop(ctx context.Context) {
	buf := make([]byte, protocol.MaxDatagramBytes)
	for {
		n, addr, err := l.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("transport: udp read error", "err", err)
			continue
		}
		l.metrics.BytesIn.Add(uint64(n))
		l.handleDatagram(ctx, append([]byte(nil), buf[:n]...), addr)
	}
}

func (l *Layer) handleDatagram(ctx context.Context, body []byte, addr *net.UDPAddr) {
	env, err := protocol.DecodeDatagram(body)
	if err != nil {
		l.metrics.UDPWrongKind.Add(1)
		return
	}

	playerID, err := parsePlayerID(env.PlayerID)
	if err != nil {
		l.metrics.UDPAuthRejected.Add(1)
		return
	}

	info, ok := l.registry.ByPlayer(playerID)
	if !ok {
		l.metrics.UDPAuthRejected.Add(1)
		return
	}

	if subtle.ConstantTimeCompare(info.UDPSecret[:], env.UDPSecret) != 1 {
		l.metrics.UDPAuthRejected.Add(1)
		return
	}

	if l.sessionMembership != nil && !l.sessionMembership(playerID, env.SessionID) {
		l.metrics.UDPSessionMismatch.Add(1)
		return
	}

	addrStr := addr.String()
	if info.UDPBoundAddr != "" && info.UDPBoundAddr != addrStr {
		if time.Since(info.UDPBoundAt) < TRebind {
			slog.Warn("transport: udp rebind rejected within cooldown", "connection_id", info.ConnectionID, "old", info.UDPBoundAddr, "new", addrStr)
			l.metrics.UDPAuthRejected.Add(1)
			return
		}
	}
	l.registry.BindUDP(info.ConnectionID, addrStr, time.Now())
	l.registry.Touch(info.ConnectionID, time.Now())
	l.metrics.MessagesIn.Add(1)

	select {
	case l.inbound <- Inbound{ConnectionID: info.ConnectionID, Addr: addrStr, Env: env}:
	case <-ctx.Done():
	}
}

// SendUDP writes env as a single unreliable datagram to connectionID's
// currently bound UDP address. It is a no-op (not an error) if the
// connection has never sent a validated datagram, since telemetry delivery
// is inherently best-effort.
func (l *Layer) SendUDP(connectionID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connectionID)
	if !ok || info.UDPBoundAddr == "" {
		return
	}
	addr, err := net.ResolveUDPAddr("udp", info.UDPBoundAddr)
	if err != nil {
		return
	}
	body, err := protocol.EncodeDatagram(env)
	if err != nil {
		return
	}
	n, err := l.udpConn.WriteToUDP(body, addr)
	if err == nil {
		l.metrics.BytesOut.Add(uint64(n))
		l.metrics.MessagesOut.Add(1)
	}
}
