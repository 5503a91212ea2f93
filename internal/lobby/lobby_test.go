package lobby

import (
	"testing"

	"github.com/google/uuid"
)

func newJoinableSession(id uuid.UUID, max uint8) *Session {
	return &Session{ID: id, MaxPlayers: max, State: StateLobby, Visibility: Public}
}

func TestJoinSessionRespectsCapacityAndState(t *testing.T) {
	m := New()
	host := uuid.New()
	m.AddPlayer(&Player{ID: host})
	sid := uuid.New()
	m.RegisterSession(newJoinableSession(sid, 1))

	if !m.JoinSession(host, sid) {
		t.Fatal("expected first join to succeed")
	}

	other := uuid.New()
	m.AddPlayer(&Player{ID: other})
	if m.JoinSession(other, sid) {
		t.Fatal("expected second join to fail: session full")
	}

	players, _ := m.PlayerSessionCounts(sid)
	if players != 1 {
		t.Fatalf("got %d participants, want 1", players)
	}
}

func TestJoinAsSpectatorDoesNotConsumeSlot(t *testing.T) {
	m := New()
	sid := uuid.New()
	m.RegisterSession(newJoinableSession(sid, 1))
	spec := uuid.New()
	m.AddPlayer(&Player{ID: spec})

	if !m.JoinAsSpectator(spec, sid) {
		t.Fatal("expected spectator join to succeed")
	}
	players, spectators := m.PlayerSessionCounts(sid)
	if players != 0 || spectators != 1 {
		t.Fatalf("got players=%d spectators=%d, want 0,1", players, spectators)
	}
}

func TestLeaveSessionTwiceIsNoOp(t *testing.T) {
	m := New()
	sid := uuid.New()
	m.RegisterSession(newJoinableSession(sid, 4))
	p := uuid.New()
	m.AddPlayer(&Player{ID: p})
	m.JoinSession(p, sid)

	empty, has := m.LeaveSession(p)
	if !has || empty != sid {
		t.Fatalf("expected session %v reported empty, got %v %v", sid, empty, has)
	}

	_, has = m.LeaveSession(p)
	if has {
		t.Fatal("expected second LeaveSession to report no empty session")
	}
}

func TestAvailableSessionsOmitsPrivate(t *testing.T) {
	m := New()
	pub := uuid.New()
	priv := uuid.New()
	m.RegisterSession(&Session{ID: pub, Visibility: Public})
	m.RegisterSession(&Session{ID: priv, Visibility: Private})

	sessions := m.AvailableSessions()
	for _, s := range sessions {
		if s.ID == priv {
			t.Fatal("private session must not be listed")
		}
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
}

func TestRemovePlayerWithdrawsFromSession(t *testing.T) {
	m := New()
	sid := uuid.New()
	m.RegisterSession(newJoinableSession(sid, 4))
	p := uuid.New()
	m.AddPlayer(&Player{ID: p})
	m.JoinSession(p, sid)

	empty, has := m.RemovePlayer(p)
	if !has || empty != sid {
		t.Fatalf("expected session reported empty on removal, got %v %v", empty, has)
	}
}
