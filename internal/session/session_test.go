package session

import (
	"testing"

	"github.com/google/uuid"

	"raceserver/internal/ai"
	"raceserver/internal/catalog"
	"raceserver/internal/physics"
)

func newTestSession(t *testing.T, maxPlayers, aiCount, lapLimit uint8) *Session {
	t.Helper()
	track := catalog.DefaultTrackConfig()
	car := catalog.DefaultCarConfig()
	cars := map[uuid.UUID]catalog.CarConfig{car.ID: car}
	return New(uuid.New(), track, cars, maxPlayers, aiCount, lapLimit)
}

func TestAddPlayerAssignsLowestGridPosition(t *testing.T) {
	s := newTestSession(t, 8, 0, 3)
	var carID uuid.UUID
	for id := range s.cars {
		carID = id
	}

	pos, ok := s.AddPlayer(uuid.New(), carID)
	if !ok || pos != 1 {
		t.Fatalf("got pos=%d ok=%v, want 1,true", pos, ok)
	}
	if len(s.Participants) != 1 {
		t.Fatalf("got %d participants, want 1", len(s.Participants))
	}
}

func TestStartCountdownOnlyFromLobby(t *testing.T) {
	s := newTestSession(t, 8, 0, 3)
	s.StartCountdown()
	if s.State != StateCountdown || s.CountdownTicks == nil {
		t.Fatal("expected transition to Countdown with ticks set")
	}

	before := *s.CountdownTicks
	s.StartCountdown() // no-op: already in Countdown
	if *s.CountdownTicks != before {
		t.Fatal("expected StartCountdown to be a no-op outside Lobby")
	}
}

func TestTickCountdownDecrementsThenTransitionsToRacing(t *testing.T) {
	s := newTestSession(t, 8, 0, 3)
	s.State = StateCountdown
	one := uint16(1)
	s.CountdownTicks = &one

	s.Tick(nil)
	if s.State != StateCountdown {
		t.Fatalf("got state %v, want Countdown", s.State)
	}
	if *s.CountdownTicks != 0 {
		t.Fatalf("got countdown %d, want 0", *s.CountdownTicks)
	}

	s.Tick(nil)
	if s.State != StateRacing {
		t.Fatalf("got state %v, want Racing", s.State)
	}
	if s.RaceStartTick == nil {
		t.Fatal("expected race_start_tick to be set")
	}
}

func TestTickMonotoneCurrentTick(t *testing.T) {
	s := newTestSession(t, 8, 0, 3)
	var prev uint32
	for i := 0; i < 100; i++ {
		s.Tick(nil)
		if s.CurrentTick <= prev {
			t.Fatalf("current_tick did not strictly increase: %d <= %d", s.CurrentTick, prev)
		}
		prev = s.CurrentTick
	}
}

func TestRaceCompletesAndAssignsFinishPositions(t *testing.T) {
	s := newTestSession(t, 8, 0, 1)
	s.State = StateRacing
	var carID uuid.UUID
	for id := range s.cars {
		carID = id
	}
	p1, p2 := uuid.New(), uuid.New()
	s.AddPlayer(p1, carID)
	s.AddPlayer(p2, carID)

	s.Participants[p1].CurrentLap = 2
	s.Participants[p1].TrackProgress = 500
	s.Participants[p2].CurrentLap = 2
	s.Participants[p2].TrackProgress = 100

	s.Tick(map[uuid.UUID]physics.Input{})

	if s.State != StateFinished {
		t.Fatalf("got state %v, want Finished", s.State)
	}
	if s.Participants[p1].FinishPosition == nil || *s.Participants[p1].FinishPosition != 1 {
		t.Error("expected leader (more progress) to finish 1st")
	}
	if s.Participants[p2].FinishPosition == nil || *s.Participants[p2].FinishPosition != 2 {
		t.Error("expected trailing participant to finish 2nd")
	}
}

func TestSpawnAIDriversRespectsAICount(t *testing.T) {
	s := newTestSession(t, 8, 2, 3)
	profiles := ai.GenerateDefaultProfiles(2)
	s.SetAIProfiles(profiles)

	s.SpawnAIDrivers()

	if len(s.AIPlayerIDs) != 2 {
		t.Fatalf("got %d AI drivers, want 2", len(s.AIPlayerIDs))
	}
	if len(s.Participants) != 2 {
		t.Fatalf("got %d participants, want 2", len(s.Participants))
	}
	for _, id := range s.AIPlayerIDs {
		if !s.IsAIPlayer(id) {
			t.Errorf("expected %v to be recognized as AI player", id)
		}
	}
}
