// Package lobby tracks authenticated players who are not currently racing,
// the catalogue of advertised sessions, and each player's "where are you"
// index (in-session, spectating, or idle). Grounded on the reference
// LobbyManager (server/src/lobby.rs), restructured around a single
// RWMutex with the fixed sub-lock order spec.md calls for rather than four
// independently-locked maps, since Go's sync.RWMutex does not compose the
// way the original's four separate async RwLocks do.
package lobby

import (
	"sync"

	"github.com/google/uuid"
)

type Visibility int

const (
	Public Visibility = iota
	Private
	Protected
)

type SessionState int

const (
	StateLobby SessionState = iota
	StateCountdown
	StateRacing
	StateFinished
)

func (s SessionState) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateCountdown:
		return "countdown"
	case StateRacing:
		return "racing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Protected:
		return "protected"
	default:
		return "unknown"
	}
}

// Player is the lobby-facing record for an authenticated connection.
type Player struct {
	ID            uuid.UUID
	Name          string
	ConnectionID  uint64
	SelectedCarID uuid.UUID
	IsAI          bool
}

// Session is the advertised metadata for one RaceSession, kept in sync
// with (but not owning) the authoritative simulation state the ServerLoop
// holds.
type Session struct {
	ID               uuid.UUID
	HostPlayerID     uuid.UUID
	TrackName        string
	TrackConfigID    uuid.UUID
	Kind             string
	MaxPlayers       uint8
	CurrentPlayers   uint8
	SpectatorCount   uint8
	State            SessionState
	Visibility       Visibility
	PasswordRequired bool
}

// Manager is the single shared lobby structure. All mutating operations
// take the lock in the fixed order players -> sessions -> playerSessions ->
// spectators to prevent lock-ordering cycles; in practice a single mutex
// guards all four maps so the order is enforced by construction.
type Manager struct {
	mu sync.RWMutex

	players        map[uuid.UUID]*Player
	sessions       map[uuid.UUID]*Session
	playerSessions map[uuid.UUID]uuid.UUID // participant -> session
	spectators     map[uuid.UUID]uuid.UUID // spectator -> session
}

func New() *Manager {
	return &Manager{
		players:        make(map[uuid.UUID]*Player),
		sessions:       make(map[uuid.UUID]*Session),
		playerSessions: make(map[uuid.UUID]uuid.UUID),
		spectators:     make(map[uuid.UUID]uuid.UUID),
	}
}

// AddPlayer inserts a newly authenticated player into the lobby.
func (m *Manager) AddPlayer(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = p
}

// RemovePlayer withdraws a player from the lobby and from any session or
// spectator slot it occupied. It returns the id of a session left with
// zero players and zero spectators, so the caller can schedule teardown.
func (m *Manager) RemovePlayer(playerID uuid.UUID) (emptySession uuid.UUID, hasEmpty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.players, playerID)

	if sid, ok := m.playerSessions[playerID]; ok {
		delete(m.playerSessions, playerID)
		if s, ok := m.sessions[sid]; ok {
			s.CurrentPlayers = satSub(s.CurrentPlayers)
			if s.CurrentPlayers == 0 && s.SpectatorCount == 0 {
				emptySession, hasEmpty = sid, true
			}
		}
	}

	if sid, ok := m.spectators[playerID]; ok {
		delete(m.spectators, playerID)
		if s, ok := m.sessions[sid]; ok {
			s.SpectatorCount = satSub(s.SpectatorCount)
			if s.CurrentPlayers == 0 && s.SpectatorCount == 0 {
				emptySession, hasEmpty = sid, true
			}
		}
	}
	return
}

func satSub(v uint8) uint8 {
	if v == 0 {
		return 0
	}
	return v - 1
}

// RegisterSession advertises a new session.
func (m *Manager) RegisterSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// UnregisterSession withdraws a session and clears any player/spectator
// membership pointing at it.
func (m *Manager) UnregisterSession(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	for p, sid := range m.playerSessions {
		if sid == sessionID {
			delete(m.playerSessions, p)
		}
	}
	for p, sid := range m.spectators {
		if sid == sessionID {
			delete(m.spectators, p)
		}
	}
}

// SetSessionState updates a session's published state, e.g. when the
// SessionTicker transitions Lobby->Countdown->Racing->Finished.
func (m *Manager) SetSessionState(sessionID uuid.UUID, state SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.State = state
	}
}

// JoinSession admits playerID as a participant. Preconditions: the session
// exists, is in StateLobby, and has a free player slot.
func (m *Manager) JoinSession(playerID, sessionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.State != StateLobby || s.CurrentPlayers >= s.MaxPlayers {
		return false
	}
	if _, ok := m.players[playerID]; !ok {
		return false
	}
	m.playerSessions[playerID] = sessionID
	s.CurrentPlayers++
	return true
}

// JoinAsSpectator admits playerID as a spectator of any session regardless
// of its state; spectators never consume a player slot.
func (m *Manager) JoinAsSpectator(playerID, sessionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if _, ok := m.players[playerID]; !ok {
		return false
	}
	m.spectators[playerID] = sessionID
	s.SpectatorCount++
	return true
}

// LeaveSession withdraws playerID from whichever session it participates
// in or spectates, returning that session's id if it is now empty of both
// players and spectators. A player not in any session is a no-op.
func (m *Manager) LeaveSession(playerID uuid.UUID) (emptySession uuid.UUID, hasEmpty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sid, ok := m.playerSessions[playerID]; ok {
		delete(m.playerSessions, playerID)
		if s, ok := m.sessions[sid]; ok {
			s.CurrentPlayers = satSub(s.CurrentPlayers)
			if s.CurrentPlayers == 0 && s.SpectatorCount == 0 {
				emptySession, hasEmpty = sid, true
			}
		}
	}
	if sid, ok := m.spectators[playerID]; ok {
		delete(m.spectators, playerID)
		if s, ok := m.sessions[sid]; ok {
			s.SpectatorCount = satSub(s.SpectatorCount)
			if s.CurrentPlayers == 0 && s.SpectatorCount == 0 {
				emptySession, hasEmpty = sid, true
			}
		}
	}
	return
}

// SetPlayerCar records a player's selected car config ahead of creating or
// joining a session.
func (m *Manager) SetPlayerCar(playerID, carConfigID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		p.SelectedCarID = carConfigID
	}
}

func (m *Manager) GetPlayerCar(playerID uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[playerID]
	if !ok || p.SelectedCarID == uuid.Nil {
		return uuid.Nil, false
	}
	return p.SelectedCarID, true
}

// AvailableSessions returns a snapshot of Public and Protected sessions
// (Private sessions are never listed). Protected entries are returned as-is
// with PasswordRequired set so callers can surface the flag.
func (m *Manager) AvailableSessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Visibility == Private {
			continue
		}
		cp := *s
		if s.Visibility == Protected {
			cp.PasswordRequired = true
		}
		out = append(out, cp)
	}
	return out
}

// Players returns a snapshot of every player currently in the lobby.
func (m *Manager) Players() []Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, *p)
	}
	return out
}

// CurrentSession reports the session a player currently participates in or
// spectates, if any.
func (m *Manager) CurrentSession(playerID uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sid, ok := m.playerSessions[playerID]; ok {
		return sid, true
	}
	if sid, ok := m.spectators[playerID]; ok {
		return sid, true
	}
	return uuid.Nil, false
}

// SpectatorsOf returns the ids of every player spectating sessionID.
func (m *Manager) SpectatorsOf(sessionID uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for p, sid := range m.spectators {
		if sid == sessionID {
			out = append(out, p)
		}
	}
	return out
}

// PlayerSessionCounts returns the number of participants and spectators
// currently tracked for sessionID, used by tests asserting P2.
func (m *Manager) PlayerSessionCounts(sessionID uuid.UUID) (players, spectators int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sid := range m.playerSessions {
		if sid == sessionID {
			players++
		}
	}
	for _, sid := range m.spectators {
		if sid == sessionID {
			spectators++
		}
	}
	return
}
