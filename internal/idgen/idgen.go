// Package idgen mints the opaque identifiers used across the domain model:
// 128-bit player/session/car-config/track-config ids, and the 64-bit
// connection id deterministically derived from a transport address.
package idgen

import (
	"hash/fnv"
	"net"

	"github.com/google/uuid"
)

// New returns a fresh opaque 128-bit identifier.
func New() uuid.UUID {
	return uuid.New()
}

// ParseOrNil parses a textual id, returning uuid.Nil on failure rather than
// an error; callers that need to distinguish "absent" from "malformed"
// should use uuid.Parse directly.
func ParseOrNil(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ConnectionID derives a stable 64-bit id from a transport address. The same
// address hashes to the same id within a process lifetime; it is not a
// security token, only a map key stable enough to log and correlate.
func ConnectionID(addr net.Addr) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(addr.Network()))
	_, _ = h.Write([]byte(addr.String()))
	return h.Sum64()
}
