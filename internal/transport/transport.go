package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"raceserver/internal/config"
	"raceserver/internal/metrics"
	"raceserver/internal/protocol"
	"raceserver/internal/registry"
)

// ControlMessagesPerSecond bounds how many control-stream messages a single
// connection may submit before being rate limited. Unlike the reference
// server's hand-rolled per-second counter (room.go's CheckControlRate), this
// uses golang.org/x/time/rate so bursts are smoothed rather than reset on
// a wall-clock second boundary.
const ControlMessagesPerSecond = 50
const controlBurst = 10

// Inbound is one decoded message handed up from either transport channel.
type Inbound struct {
	ConnectionID uint64
	Addr         string
	Env          *protocol.Envelope
}

// Layer is the dual-channel network boundary: a TCP/TLS listener for the
// stream that carries all server->client messages, plus a single UDP socket
// receiving PlayerInput.
type Layer struct {
	cfg      config.NetworkConfig
	registry *registry.Registry
	metrics  *metrics.Registry

	tcpListener net.Listener
	udpConn     *net.UDPConn

	inbound chan Inbound

	limiters   map[uint64]*rate.Limiter
	limitersMu chan struct{} // 1-capacity mutex-by-channel, see limiterFor

	sessionMembership SessionMembershipFunc
}

// New builds a Layer bound to cfg's addresses but does not yet listen.
func New(cfg config.NetworkConfig, reg *registry.Registry, m *metrics.Registry) *Layer {
	l := &Layer{
		cfg:        cfg,
		registry:   reg,
		metrics:    m,
		inbound:    make(chan Inbound, 1024),
		limiters:   make(map[uint64]*rate.Limiter),
		limitersMu: make(chan struct{}, 1),
	}
	l.limitersMu <- struct{}{}
	return l
}

// Inbound is the channel of decoded client messages from both channels.
// The ServerLoop is the sole consumer.
func (l *Layer) Inbound() <-chan Inbound { return l.inbound }

// Start binds the TCP and UDP sockets and begins accepting/receiving.
// It returns once both sockets are bound; the accept/receive loops run in
// background goroutines tied to ctx.
func (l *Layer) Start(ctx context.Context) error {
	var tlsConfig *tls.Config
	switch {
	case l.cfg.TLSCertPath != "":
		cfg, fingerprint, err := loadTLSConfig(l.cfg.TLSCertPath, l.cfg.TLSKeyPath)
		switch {
		case err == nil:
			slog.Info("transport: tls certificate loaded", "fingerprint", fingerprint)
			tlsConfig = cfg
		case l.cfg.RequireTLS:
			return fmt.Errorf("transport: require_tls set but cert/key could not be loaded from %s/%s: %w", l.cfg.TLSCertPath, l.cfg.TLSKeyPath, err)
		default:
			slog.Warn("transport: tls cert/key could not be loaded, running in plaintext", "cert_path", l.cfg.TLSCertPath, "key_path", l.cfg.TLSKeyPath, "err", err)
		}
	case l.cfg.RequireTLS:
		host, _, _ := net.SplitHostPort(l.cfg.TCPBind)
		cfg, fingerprint, err := selfSignedTLSConfig(365*24*time.Hour, host)
		if err != nil {
			return fmt.Errorf("transport: require_tls set but self-signed cert generation failed: %w", err)
		}
		slog.Info("transport: tls certificate ready", "fingerprint", fingerprint, "self_signed", true)
		tlsConfig = cfg
	}

	ln, err := net.Listen("tcp", l.cfg.TCPBind)
	if err != nil {
		return fmt.Errorf("transport: listen tcp %s: %w", l.cfg.TCPBind, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	l.tcpListener = ln

	udpAddr, err := net.ResolveUDPAddr("udp", l.cfg.UDPBind)
	if err != nil {
		ln.Close()
		return fmt.Errorf("transport: resolve udp %s: %w", l.cfg.UDPBind, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("transport: listen udp %s: %w", l.cfg.UDPBind, err)
	}
	l.udpConn = udpConn

	slog.Info("transport: listening", "tcp", l.cfg.TCPBind, "udp", l.cfg.UDPBind, "tls", tlsConfig != nil)

	go l.acceptLoop(ctx)
	go l.receiveUDPLoop(ctx)
	return nil
}

func (l *Layer) limiterFor(connectionID uint64) *rate.Limiter {
	<-l.limitersMu
	defer func() { l.limitersMu <- struct{}{} }()
	lim, ok := l.limiters[connectionID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(ControlMessagesPerSecond), controlBurst)
		l.limiters[connectionID] = lim
	}
	return lim
}

func (l *Layer) dropLimiter(connectionID uint64) {
	<-l.limitersMu
	delete(l.limiters, connectionID)
	l.limitersMu <- struct{}{}
}

// SendTo enqueues env on the named connection's outbound queue, returning
// false if the connection is unknown or its queue is closed.
func (l *Layer) SendTo(connectionID uint64, env *protocol.Envelope) bool {
	info, ok := l.registry.ByConnection(connectionID)
	if !ok {
		return false
	}
	conn, ok := info.Sink.(*Conn)
	if !ok {
		return false
	}
	sent := conn.Send(env)
	if sent {
		l.metrics.MessagesOut.Add(1)
	} else if env.Type.Priority() == protocol.Critical {
		l.metrics.MessagesDroppedCritical.Add(1)
	} else {
		l.metrics.MessagesDroppedDroppable.Add(1)
	}
	return sent
}

// Broadcast enqueues env on every currently registered connection.
func (l *Layer) Broadcast(env *protocol.Envelope) {
	for _, info := range l.registry.Snapshot() {
		if conn, ok := info.Sink.(*Conn); ok {
			if conn.Send(env) {
				l.metrics.MessagesOut.Add(1)
			}
		}
	}
}

// Shutdown broadcasts a Critical service-unavailable error to every
// connection, gives writers up to 500ms to flush it, then closes both
// sockets. Mirrors the reference server's graceful-shutdown sleep window.
func (l *Layer) Shutdown(ctx context.Context) {
	l.Broadcast(&protocol.Envelope{Type: protocol.TypeError, Code: 503, Reason: "server shutting down"})
	select {
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
	}
	if l.tcpListener != nil {
		l.tcpListener.Close()
	}
	if l.udpConn != nil {
		l.udpConn.Close()
	}
}
