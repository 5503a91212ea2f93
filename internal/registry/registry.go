// Package registry is the triple-keyed connection index: by connection id,
// by player id (once authenticated), and by transport address. The maps
// are private and change only through this type's methods: TransportLayer
// registers, touches and unregisters connections, and the ServerLoop calls
// Authenticate, SetUDPSecret and SweepStale. Lookups return copies.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink is the outbound delivery handle TransportLayer attaches to a
// connection at accept time. It is opaque to the registry; the registry
// only tracks it so the caller can reach it back out of a lookup.
type Sink interface {
	// Closed reports whether the outbound queue has been torn down.
	Closed() bool
	// Close tears the connection down; used by the heartbeat sweep to
	// force-disconnect a stale connection.
	Close()
}

// Info is a connection's registry record. PlayerID is uuid.Nil until
// Authenticate succeeds.
type Info struct {
	ConnectionID   uint64
	Address        string
	PlayerID       uuid.UUID
	DisplayName    string
	ConnectedAt    time.Time
	LastHeartbeat  time.Time
	Sink           Sink
	UDPSecret      [32]byte
	UDPBoundAddr   string
	UDPBoundAt     time.Time
}

// Registry maintains the three indices described in spec.md §4.2 under a
// single writer lock; reads may run concurrently.
type Registry struct {
	mu sync.RWMutex

	byConnection map[uint64]*Info
	byPlayer     map[uuid.UUID]uint64
	byAddress    map[string]uint64
}

func New() *Registry {
	return &Registry{
		byConnection: make(map[uint64]*Info),
		byPlayer:     make(map[uuid.UUID]uint64),
		byAddress:    make(map[string]uint64),
	}
}

// Register inserts a freshly accepted, not-yet-authenticated connection.
func (r *Registry) Register(info *Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConnection[info.ConnectionID] = info
	r.byAddress[info.Address] = info.ConnectionID
}

// Authenticate binds a player id to an already-registered connection. It
// updates the byConnection and byPlayer maps together so no reader can ever
// observe one without the other.
func (r *Registry) Authenticate(connectionID uint64, playerID uuid.UUID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byConnection[connectionID]
	if !ok {
		return false
	}
	info.PlayerID = playerID
	info.DisplayName = displayName
	r.byPlayer[playerID] = connectionID
	return true
}

// Touch updates the heartbeat timestamp for a connection.
func (r *Registry) Touch(connectionID uint64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byConnection[connectionID]; ok {
		info.LastHeartbeat = at
	}
}

// SetUDPSecret stores the 32-byte secret issued to a connection at
// authentication time, used by the datagram path to validate PlayerInput.
func (r *Registry) SetUDPSecret(connectionID uint64, secret [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byConnection[connectionID]; ok {
		info.UDPSecret = secret
	}
}

// BindUDP records the transport address a connection's UDP channel has
// bound to, along with the time of binding (used for the rebind cooldown).
func (r *Registry) BindUDP(connectionID uint64, addr string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byConnection[connectionID]; ok {
		info.UDPBoundAddr = addr
		info.UDPBoundAt = at
	}
}

// Unregister removes a connection's entry from all three maps
// transactionally; it is a no-op if the connection is already gone.
func (r *Registry) Unregister(connectionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byConnection[connectionID]
	if !ok {
		return
	}
	delete(r.byConnection, connectionID)
	delete(r.byAddress, info.Address)
	if info.PlayerID != uuid.Nil {
		delete(r.byPlayer, info.PlayerID)
	}
}

// ByConnection returns a shallow copy of the record, or false if absent.
func (r *Registry) ByConnection(connectionID uint64) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byConnection[connectionID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// ByPlayer resolves a player id to its connection record.
func (r *Registry) ByPlayer(playerID uuid.UUID) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byPlayer[playerID]
	if !ok {
		return Info{}, false
	}
	info, ok := r.byConnection[connID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// ByAddress resolves a transport address to its connection record.
func (r *Registry) ByAddress(addr string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byAddress[addr]
	if !ok {
		return Info{}, false
	}
	info, ok := r.byConnection[connID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// Snapshot returns a copy of every registered connection, safe to range
// over without holding any lock.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.byConnection))
	for _, info := range r.byConnection {
		out = append(out, *info)
	}
	return out
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConnection)
}

// SweepStale removes every connection whose last heartbeat is older than
// timeout, relative to now, closes each one's Sink so its writer/reader
// tasks unwind, and returns a copy of the removed records so the caller can
// reconcile any domain state (lobby membership, session participation)
// keyed off the player id.
func (r *Registry) SweepStale(now time.Time, timeout time.Duration) []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	var staleIDs []uint64
	for id, info := range r.byConnection {
		if now.Sub(info.LastHeartbeat) > timeout {
			staleIDs = append(staleIDs, id)
		}
	}
	removed := make([]Info, 0, len(staleIDs))
	for _, id := range staleIDs {
		info := r.byConnection[id]
		removed = append(removed, *info)
		delete(r.byConnection, id)
		delete(r.byAddress, info.Address)
		if info.PlayerID != uuid.Nil {
			delete(r.byPlayer, info.PlayerID)
		}
		info.Sink.Close()
	}
	return removed
}
