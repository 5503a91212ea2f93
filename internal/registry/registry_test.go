package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type noopSink struct{}

func (noopSink) Closed() bool { return false }
func (noopSink) Close()       {}

func TestRegisterAuthenticateUnregisterConsistency(t *testing.T) {
	r := New()
	r.Register(&Info{ConnectionID: 1, Address: "1.2.3.4:9", Sink: noopSink{}, ConnectedAt: time.Now()})

	if r.Len() != 1 {
		t.Fatalf("got %d connections, want 1", r.Len())
	}
	if _, ok := r.ByAddress("1.2.3.4:9"); !ok {
		t.Fatal("expected address lookup to succeed")
	}

	pid := uuid.New()
	if !r.Authenticate(1, pid, "Alice") {
		t.Fatal("expected Authenticate to succeed")
	}
	if _, ok := r.ByPlayer(pid); !ok {
		t.Fatal("expected player lookup to succeed after auth")
	}

	r.Unregister(1)
	if r.Len() != 0 {
		t.Fatalf("got %d connections after unregister, want 0", r.Len())
	}
	if _, ok := r.ByAddress("1.2.3.4:9"); ok {
		t.Error("expected address index to be cleared")
	}
	if _, ok := r.ByPlayer(pid); ok {
		t.Error("expected player index to be cleared")
	}
}

func TestUnregisterTwiceIsNoOp(t *testing.T) {
	r := New()
	r.Register(&Info{ConnectionID: 1, Address: "a", Sink: noopSink{}})
	r.Unregister(1)
	r.Unregister(1) // must not panic or corrupt state
	if r.Len() != 0 {
		t.Fatalf("got %d, want 0", r.Len())
	}
}

func TestSweepStaleRemovesOnlyTimedOutConnections(t *testing.T) {
	r := New()
	now := time.Now()
	r.Register(&Info{ConnectionID: 1, Address: "fresh", Sink: noopSink{}, LastHeartbeat: now})
	r.Register(&Info{ConnectionID: 2, Address: "stale", Sink: noopSink{}, LastHeartbeat: now.Add(-time.Minute)})

	stale := r.SweepStale(now, 10*time.Second)

	if len(stale) != 1 || stale[0].ConnectionID != 2 {
		t.Fatalf("got %v, want [connection 2]", stale)
	}
	if r.Len() != 1 {
		t.Fatalf("got %d remaining, want 1", r.Len())
	}
	if _, ok := r.ByConnection(1); !ok {
		t.Error("expected fresh connection to survive sweep")
	}
}

func TestEveryConnectionIndexedConsistently(t *testing.T) {
	r := New()
	for i := uint64(1); i <= 5; i++ {
		r.Register(&Info{ConnectionID: i, Address: string(rune('a' + i)), Sink: noopSink{}})
		if i%2 == 0 {
			r.Authenticate(i, uuid.New(), "p")
		}
	}

	for _, info := range r.Snapshot() {
		if _, ok := r.ByAddress(info.Address); !ok {
			t.Errorf("connection %d missing from address index", info.ConnectionID)
		}
		if info.PlayerID != uuid.Nil {
			if _, ok := r.ByPlayer(info.PlayerID); !ok {
				t.Errorf("connection %d missing from player index", info.ConnectionID)
			}
		}
	}
}
