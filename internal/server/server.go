// Package server implements the ServerLoop: the single master coroutine
// that drives the fixed-rate simulation ticker, drains inbound messages
// from the TransportLayer, dispatches them to the LobbyManager and the
// active RaceSessions, and fans telemetry back out. It is the only
// component that mutates lobby or session state, mirroring the single
// top-level orchestrator role spec.md assigns to ServerLoop.
//
// Grounded on the teacher's main.go ticker goroutines (periodic mute-expiry
// sweep, metrics logger) generalized into one cooperatively-scheduled loop,
// since the domain here forbids session-to-session concurrency and wants a
// single writer for all mutable state instead of one task per concern.
package server

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"raceserver/internal/ai"
	"raceserver/internal/catalog"
	"raceserver/internal/config"
	"raceserver/internal/lobby"
	"raceserver/internal/metrics"
	"raceserver/internal/physics"
	"raceserver/internal/protocol"
	"raceserver/internal/registry"
	"raceserver/internal/replay"
	"raceserver/internal/session"
	"raceserver/internal/transport"
)

// protocolVersion is reported in AuthSuccess so clients can detect a wire
// mismatch before sending anything else.
const protocolVersion = 1

// inboundDrainBudget bounds how many inbound messages are dispatched per
// tick, so one connection flooding the queue can't starve the physics step.
const inboundDrainBudget = 512

const connectionSweepInterval = 1 * time.Second
const lobbyBroadcastInterval = 2 * time.Second

const defaultMaxPlayers = 16
const defaultLapLimit = 3
const countdownSeconds = 5

// Loop is the ServerLoop: it owns every RaceSession and the LobbyManager,
// per spec.md's ownership rule, and is the sole writer of both.
type Loop struct {
	cfg       config.Config
	registry  *registry.Registry
	transport *transport.Layer
	lobby     *lobby.Manager
	catalog   *catalog.Catalog
	metrics   *metrics.Registry
	replayDir string

	sessions          map[uuid.UUID]*session.Session
	recorders         map[uuid.UUID]*replay.Recorder
	sessionFinishedAt map[uuid.UUID]time.Time
	latestInputs      map[uuid.UUID]physics.Input

	currentTick  uint32
	ticksStarted bool
}

// New builds a ServerLoop. replayDir is where finished sessions' replays
// are written.
func New(cfg config.Config, reg *registry.Registry, tr *transport.Layer, lb *lobby.Manager, cat *catalog.Catalog, m *metrics.Registry, replayDir string) *Loop {
	return &Loop{
		cfg:               cfg,
		registry:          reg,
		transport:         tr,
		lobby:             lb,
		catalog:           cat,
		metrics:           m,
		replayDir:         replayDir,
		sessions:          make(map[uuid.UUID]*session.Session),
		recorders:         make(map[uuid.UUID]*replay.Recorder),
		sessionFinishedAt: make(map[uuid.UUID]time.Time),
		latestInputs:      make(map[uuid.UUID]physics.Input),
	}
}

// Healthy satisfies healthsrv.Checker: the process is healthy as long as it
// is running at all.
func (l *Loop) Healthy() bool { return true }

// Ready satisfies healthsrv.Checker: the server isn't ready to be counted
// on for matchmaking until it has completed at least one tick.
func (l *Loop) Ready() bool { return l.ticksStarted }

// Run drives the fixed-rate ticker until ctx is canceled. It is not safe to
// call concurrently with itself; all mutation of lobby/session state
// happens on this single goroutine.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	nextSweep := time.Now().Add(connectionSweepInterval)
	nextLobbyBroadcast := time.Now().Add(lobbyBroadcastInterval)

	slog.Info("serverloop: running", "tick_rate_hz", l.cfg.Server.TickRateHz)

	for {
		select {
		case <-ctx.Done():
			slog.Info("serverloop: stopped")
			return nil
		case now := <-ticker.C:
			l.currentTick++
			l.ticksStarted = true

			l.drainInbound()

			if !now.Before(nextSweep) {
				l.sweepConnections(now)
				nextSweep = now.Add(connectionSweepInterval)
			}
			if !now.Before(nextLobbyBroadcast) {
				l.transport.Broadcast(l.buildLobbyState())
				nextLobbyBroadcast = now.Add(lobbyBroadcastInterval)
			}

			l.tickSessions()
			l.broadcastTelemetry()
			l.gcFinishedSessions(now)
		}
	}
}

func (l *Loop) drainInbound() {
	ch := l.transport.Inbound()
	for i := 0; i < inboundDrainBudget; i++ {
		select {
		case msg := <-ch:
			l.dispatch(msg)
		default:
			return
		}
	}
}

// dispatch routes one decoded message by kind. Non-Authenticate messages
// from a connection that hasn't completed authentication are ignored, per
// spec.md §4.3 step 3.
func (l *Loop) dispatch(msg transport.Inbound) {
	env := msg.Env
	if env.Type != protocol.TypeAuthenticate {
		info, ok := l.registry.ByConnection(msg.ConnectionID)
		if !ok || info.PlayerID == uuid.Nil {
			return
		}
	}

	switch env.Type {
	case protocol.TypeAuthenticate:
		l.handleAuthenticate(msg.ConnectionID, env)
	case protocol.TypeHeartbeat:
		l.handleHeartbeat(msg.ConnectionID)
	case protocol.TypeSelectCar:
		l.handleSelectCar(msg.ConnectionID, env)
	case protocol.TypeRequestLobbyState:
		l.transport.SendTo(msg.ConnectionID, l.buildLobbyState())
	case protocol.TypeCreateSession:
		l.handleCreateSession(msg.ConnectionID, env)
	case protocol.TypeJoinSession:
		l.handleJoinSession(msg.ConnectionID, env)
	case protocol.TypeJoinAsSpectator:
		l.handleJoinAsSpectator(msg.ConnectionID, env)
	case protocol.TypeLeaveSession:
		l.handleLeaveSession(msg.ConnectionID)
	case protocol.TypeStartSession:
		l.handleStartSession(msg.ConnectionID, env)
	case protocol.TypeDisconnect:
		l.handleDisconnect(msg.ConnectionID)
	case protocol.TypePlayerInput:
		l.handlePlayerInput(msg.ConnectionID, env)
	default:
		slog.Debug("serverloop: unhandled message type", "type", env.Type)
	}
}

func errEnvelope(code int, reason string) *protocol.Envelope {
	return &protocol.Envelope{Type: protocol.TypeError, Code: code, Reason: reason}
}

func (l *Loop) handleAuthenticate(connID uint64, env *protocol.Envelope) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		l.transport.SendTo(connID, &protocol.Envelope{Type: protocol.TypeAuthFailure, Reason: "internal error"})
		return
	}
	name := env.Name
	if name == "" {
		name = "Racer"
	}

	playerID := uuid.New()
	if !l.registry.Authenticate(connID, playerID, name) {
		return
	}
	l.registry.SetUDPSecret(connID, secret)
	l.lobby.AddPlayer(&lobby.Player{ID: playerID, Name: name, ConnectionID: connID})

	l.transport.SendTo(connID, &protocol.Envelope{
		Type:          protocol.TypeAuthSuccess,
		PlayerID:      playerID.String(),
		UDPSecret:     secret[:],
		ServerVersion: protocolVersion,
	})
}

func (l *Loop) handleHeartbeat(connID uint64) {
	l.transport.SendTo(connID, &protocol.Envelope{Type: protocol.TypeHeartbeatAck, ServerTick: l.currentTick})
}

func (l *Loop) handleSelectCar(connID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	carID, err := uuid.Parse(env.CarConfigID)
	if err != nil {
		return
	}
	l.lobby.SetPlayerCar(info.PlayerID, carID)
}

func (l *Loop) buildLobbyState() *protocol.Envelope {
	out := &protocol.Envelope{Type: protocol.TypeLobbyState}
	for _, p := range l.lobby.Players() {
		out.Players = append(out.Players, protocol.PlayerSummary{ID: p.ID.String(), Name: p.Name, IsAI: p.IsAI})
	}
	for _, s := range l.lobby.AvailableSessions() {
		out.Sessions = append(out.Sessions, protocol.SessionSummary{
			ID:               s.ID.String(),
			HostPlayerID:     s.HostPlayerID.String(),
			TrackName:        s.TrackName,
			TrackConfigID:    s.TrackConfigID.String(),
			Kind:             s.Kind,
			MaxPlayers:       s.MaxPlayers,
			PlayerCount:      int(s.CurrentPlayers),
			SpectatorCount:   int(s.SpectatorCount),
			State:            s.State.String(),
			Visibility:       s.Visibility.String(),
			PasswordRequired: s.PasswordRequired,
		})
	}
	for _, c := range l.catalog.Cars {
		out.Cars = append(out.Cars, protocol.CatalogEntry{ID: c.ID.String(), Name: c.Name})
	}
	for _, t := range l.catalog.Tracks {
		out.Tracks = append(out.Tracks, protocol.CatalogEntry{ID: t.ID.String(), Name: t.Name})
	}
	return out
}

func (l *Loop) pickCarFor(playerID uuid.UUID) uuid.UUID {
	if carID, ok := l.lobby.GetPlayerCar(playerID); ok {
		if _, exists := l.catalog.Cars[carID]; exists {
			return carID
		}
	}
	for id := range l.catalog.Cars {
		return id
	}
	return uuid.Nil
}

func (l *Loop) handleCreateSession(connID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}

	trackID, err := uuid.Parse(env.TrackConfigID)
	if err != nil {
		l.transport.SendTo(connID, errEnvelope(400, "invalid track_config_id"))
		return
	}
	track, ok := l.catalog.Tracks[trackID]
	if !ok {
		l.transport.SendTo(connID, errEnvelope(404, "unknown track"))
		return
	}

	maxPlayers := env.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = defaultMaxPlayers
	}
	lapLimit := env.LapLimit
	if lapLimit == 0 {
		lapLimit = defaultLapLimit
	}
	kind := env.SessionKind
	if kind == "" {
		kind = "multiplayer"
	}

	sess := session.New(info.PlayerID, track, l.catalog.Cars, maxPlayers, env.AICount, lapLimit)
	gridPos, ok := sess.AddPlayer(info.PlayerID, l.pickCarFor(info.PlayerID))
	if !ok {
		l.transport.SendTo(connID, errEnvelope(500, "failed to allocate grid slot"))
		return
	}
	if env.AICount > 0 {
		sess.SetAIProfiles(ai.GenerateDefaultProfiles(int(env.AICount)))
		sess.SpawnAIDrivers()
	}

	l.sessions[sess.ID] = sess
	l.lobby.RegisterSession(&lobby.Session{
		ID:            sess.ID,
		HostPlayerID:  info.PlayerID,
		TrackName:     track.Name,
		TrackConfigID: track.ID,
		Kind:          kind,
		MaxPlayers:    maxPlayers,
		State:         lobby.StateLobby,
		Visibility:    lobby.Public,
	})
	l.lobby.JoinSession(info.PlayerID, sess.ID)
	l.metrics.ActiveSessions.Add(1)

	l.transport.SendTo(connID, &protocol.Envelope{Type: protocol.TypeSessionJoined, SessionID: sess.ID.String(), GridPosition: gridPos})
}

func (l *Loop) handleJoinSession(connID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		l.transport.SendTo(connID, errEnvelope(400, "invalid session_id"))
		return
	}
	sess, ok := l.sessions[sessionID]
	if !ok {
		l.transport.SendTo(connID, errEnvelope(404, "unknown session"))
		return
	}
	if !l.lobby.JoinSession(info.PlayerID, sessionID) {
		l.transport.SendTo(connID, errEnvelope(409, "session unavailable"))
		return
	}
	gridPos, ok := sess.AddPlayer(info.PlayerID, l.pickCarFor(info.PlayerID))
	if !ok {
		l.lobby.LeaveSession(info.PlayerID)
		l.transport.SendTo(connID, errEnvelope(500, "failed to allocate grid slot"))
		return
	}
	l.transport.SendTo(connID, &protocol.Envelope{Type: protocol.TypeSessionJoined, SessionID: sessionID.String(), GridPosition: gridPos})
}

func (l *Loop) handleJoinAsSpectator(connID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		return
	}
	if !l.lobby.JoinAsSpectator(info.PlayerID, sessionID) {
		l.transport.SendTo(connID, errEnvelope(404, "unknown session"))
		return
	}
	l.transport.SendTo(connID, &protocol.Envelope{Type: protocol.TypeSessionJoined, SessionID: sessionID.String()})
}

func (l *Loop) handleLeaveSession(connID uint64) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	l.leavePlayerSession(info.PlayerID)
	l.transport.SendTo(connID, &protocol.Envelope{Type: protocol.TypeSessionLeft})
}

func (l *Loop) handleStartSession(connID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		return
	}
	sess, ok := l.sessions[sessionID]
	if !ok {
		return
	}
	if sess.HostPlayerID != info.PlayerID {
		l.transport.SendTo(connID, errEnvelope(403, "only the host can start the session"))
		return
	}
	sess.StartCountdown()
	l.lobby.SetSessionState(sessionID, lobby.StateCountdown)
	l.broadcastToParticipants(sess, &protocol.Envelope{Type: protocol.TypeSessionStarting, CountdownSeconds: countdownSeconds})
}

func (l *Loop) handleDisconnect(connID uint64) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	l.cleanupPlayer(info.PlayerID)
	info.Sink.Close()
}

// handlePlayerInput accepts a PlayerInput only for the session the sending
// player currently participates in or spectates; a spectator's input is
// stored but never read, since collectInputs reads participants only. The
// transport layer already enforces this same check
// before BindUDP/Touch (see transport.SetSessionMembership), so this is a
// second, redundant check against state that can in principle move between
// receipt and dispatch; anything that still slips through is silently
// dropped rather than erroring, since the datagram channel is inherently
// best-effort.
func (l *Loop) handlePlayerInput(connID uint64, env *protocol.Envelope) {
	info, ok := l.registry.ByConnection(connID)
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		return
	}
	current, inSession := l.lobby.CurrentSession(info.PlayerID)
	if !inSession || current != sessionID {
		l.metrics.UDPSessionMismatch.Add(1)
		return
	}
	l.latestInputs[info.PlayerID] = physics.Input{Throttle: env.Throttle, Brake: env.Brake, Steering: env.Steering}
}

// leavePlayerSession withdraws playerID from whatever session it occupies
// but leaves it registered in the lobby, used for an explicit LeaveSession
// request.
func (l *Loop) leavePlayerSession(playerID uuid.UUID) {
	sessionID, inSession := l.lobby.CurrentSession(playerID)
	emptySession, hasEmpty := l.lobby.LeaveSession(playerID)
	if inSession {
		if sess, ok := l.sessions[sessionID]; ok {
			sess.RemovePlayer(playerID)
			l.broadcastToParticipants(sess, &protocol.Envelope{Type: protocol.TypePlayerDisconnected, DisconnectedPlayerID: playerID.String()})
		}
	}
	if hasEmpty {
		l.teardownSession(emptySession)
	}
}

// cleanupPlayer withdraws playerID entirely: from its session, if any, and
// from the lobby's player set. Used on heartbeat timeout and explicit
// Disconnect.
func (l *Loop) cleanupPlayer(playerID uuid.UUID) {
	sessionID, inSession := l.lobby.CurrentSession(playerID)
	emptySession, hasEmpty := l.lobby.RemovePlayer(playerID)
	if inSession {
		if sess, ok := l.sessions[sessionID]; ok {
			sess.RemovePlayer(playerID)
			l.broadcastToParticipants(sess, &protocol.Envelope{Type: protocol.TypePlayerDisconnected, DisconnectedPlayerID: playerID.String()})
		}
	}
	if hasEmpty {
		l.teardownSession(emptySession)
	}
	delete(l.latestInputs, playerID)
}

func (l *Loop) teardownSession(sessionID uuid.UUID) {
	l.lobby.UnregisterSession(sessionID)
	if rec, ok := l.recorders[sessionID]; ok {
		_ = rec.Stop()
		delete(l.recorders, sessionID)
	}
	if _, ok := l.sessions[sessionID]; ok {
		delete(l.sessions, sessionID)
		l.metrics.ActiveSessions.Add(-1)
	}
	delete(l.sessionFinishedAt, sessionID)
}

func (l *Loop) broadcastToParticipants(sess *session.Session, env *protocol.Envelope) {
	for playerID := range sess.Participants {
		if sess.IsAIPlayer(playerID) {
			continue
		}
		if info, ok := l.registry.ByPlayer(playerID); ok {
			l.transport.SendTo(info.ConnectionID, env)
		}
	}
}

func (l *Loop) broadcastToSpectators(sess *session.Session, env *protocol.Envelope) {
	for _, playerID := range l.lobby.SpectatorsOf(sess.ID) {
		if info, ok := l.registry.ByPlayer(playerID); ok {
			l.transport.SendTo(info.ConnectionID, env)
		}
	}
}

func (l *Loop) sweepConnections(now time.Time) {
	removed := l.registry.SweepStale(now, l.cfg.HeartbeatTimeout())
	for _, info := range removed {
		if info.PlayerID != uuid.Nil {
			l.cleanupPlayer(info.PlayerID)
		}
	}
}

func (l *Loop) collectInputs(sess *session.Session) map[uuid.UUID]physics.Input {
	inputs := make(map[uuid.UUID]physics.Input, len(sess.Participants))
	for playerID := range sess.Participants {
		if in, ok := l.latestInputs[playerID]; ok {
			inputs[playerID] = in
		}
	}
	return inputs
}

// tickSessions advances every active session by one fixed timestep and
// manages the replay lifecycle around its state transitions.
func (l *Loop) tickSessions() {
	for id, sess := range l.sessions {
		wasRacing := sess.State == session.StateRacing
		wasFinished := sess.State == session.StateFinished

		sess.Tick(l.collectInputs(sess))

		if sess.State == session.StateRacing && !wasRacing {
			l.startRecording(sess)
			l.lobby.SetSessionState(id, lobby.StateRacing)
		}
		if sess.State == session.StateRacing {
			l.recordFrame(sess)
		}
		if sess.State == session.StateFinished && !wasFinished {
			l.stopRecording(sess)
			l.lobby.SetSessionState(id, lobby.StateFinished)
			l.sessionFinishedAt[id] = now()
		}
	}
}

// now is a thin indirection so the single non-deterministic time.Now call
// in the hot tick path is easy to spot.
func now() time.Time { return time.Now() }

func (l *Loop) startRecording(sess *session.Session) {
	track := l.catalog.Tracks[sess.TrackConfigID]
	participants := make([]string, 0, len(sess.Participants))
	for id := range sess.Participants {
		participants = append(participants, id.String())
	}
	meta := replay.Metadata{
		Session:      sess.ID.String(),
		Track:        track.Name,
		RecordedAt:   now().Unix(),
		TickRate:     l.cfg.Server.TickRateHz,
		Participants: participants,
	}
	rec, err := replay.StartRecording(l.replayDir, sess.ID.String(), meta, nil)
	if err != nil {
		slog.Warn("serverloop: failed to start replay recording", "session_id", sess.ID, "err", err)
		return
	}
	l.recorders[sess.ID] = rec
}

func (l *Loop) recordFrame(sess *session.Session) {
	rec, ok := l.recorders[sess.ID]
	if !ok {
		return
	}
	if err := rec.RecordFrame(sess.Telemetry()); err != nil {
		slog.Warn("serverloop: failed to record frame", "session_id", sess.ID, "err", err)
	}
}

func (l *Loop) stopRecording(sess *session.Session) {
	rec, ok := l.recorders[sess.ID]
	if !ok {
		return
	}
	if err := rec.Stop(); err != nil {
		slog.Warn("serverloop: failed to finalize replay recording", "session_id", sess.ID, "err", err)
	}
	delete(l.recorders, sess.ID)
}

// broadcastTelemetry sends every non-Lobby session's snapshot to its
// participants and spectators, every tick, per spec.md §4.8 step 5.
func (l *Loop) broadcastTelemetry() {
	for _, sess := range l.sessions {
		if sess.State == session.StateLobby {
			continue
		}
		env := sess.Telemetry()
		l.broadcastToParticipants(sess, &env)
		l.broadcastToSpectators(sess, &env)
	}
}

func (l *Loop) gcFinishedSessions(at time.Time) {
	timeout := time.Duration(l.cfg.Server.SessionTimeoutSeconds) * time.Second
	for id, sess := range l.sessions {
		if sess.State != session.StateFinished {
			continue
		}
		finishedAt, ok := l.sessionFinishedAt[id]
		if ok && at.Sub(finishedAt) > timeout {
			l.teardownSession(id)
		}
	}
}
