// Package session owns a single RaceSession's authoritative state and
// advances it one tick at a time. One Session instance exists per active
// RaceSession; the ServerLoop calls Tick directly rather than running each
// session as a separate task, since spec.md §5 forbids session-to-session
// communication and the ServerLoop is the sole mutator of domain state.
// Grounded on the reference GameSession (server/src/game_session.rs).
package session

import (
	"sort"

	"github.com/google/uuid"

	"raceserver/internal/ai"
	"raceserver/internal/catalog"
	"raceserver/internal/physics"
	"raceserver/internal/session/types"
)

type State int

const (
	StateLobby State = iota
	StateCountdown
	StateRacing
	StateFinished
)

const tickRateHz = 240
const countdownTicks = 5 * tickRateHz

// Session is one authoritative race instance. Its participant CarStates
// are exclusively owned here; nothing outside this package or its caller
// mutates them.
type Session struct {
	ID              uuid.UUID
	TrackConfigID   uuid.UUID
	HostPlayerID    uuid.UUID
	State           State
	MaxPlayers      uint8
	AICount         uint8
	LapLimit        uint8
	CurrentTick     uint32
	CountdownTicks  *uint16
	RaceStartTick   *uint32

	Participants map[uuid.UUID]*types.CarState
	AIPlayerIDs  []uuid.UUID
	AIProfiles   map[uuid.UUID]ai.Profile

	track catalog.TrackConfig
	cars  map[uuid.UUID]catalog.CarConfig
}

// New creates a session in StateLobby, not yet populated with any
// participant.
func New(hostPlayerID uuid.UUID, track catalog.TrackConfig, cars map[uuid.UUID]catalog.CarConfig, maxPlayers, aiCount, lapLimit uint8) *Session {
	return &Session{
		ID:           uuid.New(),
		TrackConfigID: track.ID,
		HostPlayerID: hostPlayerID,
		State:        StateLobby,
		MaxPlayers:   maxPlayers,
		AICount:      aiCount,
		LapLimit:     lapLimit,
		Participants: make(map[uuid.UUID]*types.CarState),
		AIProfiles:   make(map[uuid.UUID]ai.Profile),
		track:        track,
		cars:         cars,
	}
}

// StartCountdown transitions Lobby -> Countdown; a no-op in any other
// state.
func (s *Session) StartCountdown() {
	if s.State != StateLobby {
		return
	}
	s.State = StateCountdown
	ticks := uint16(countdownTicks)
	s.CountdownTicks = &ticks
}

// AddPlayer allocates the lowest unused grid position and places the car
// there. Returns (0, false) if the session is full or no grid slot exists
// for the computed position.
func (s *Session) AddPlayer(playerID, carConfigID uuid.UUID) (uint8, bool) {
	if len(s.Participants) >= int(s.MaxPlayers) {
		return 0, false
	}

	used := make(map[uint8]bool, len(s.Participants))
	for _, c := range s.Participants {
		used[c.GridPosition] = true
	}
	var gridPos uint8 = 1
	for used[gridPos] {
		gridPos++
	}

	var slot *catalog.GridSlot
	for i := range s.track.StartPositions {
		if s.track.StartPositions[i].Position == gridPos {
			slot = &s.track.StartPositions[i]
			break
		}
	}
	if slot == nil {
		return 0, false
	}

	car := types.NewCarState(playerID, carConfigID, gridPos, slot.X, slot.Y, slot.YawRad)
	s.Participants[playerID] = car
	return gridPos, true
}

// RemovePlayer withdraws a participant from the session.
func (s *Session) RemovePlayer(playerID uuid.UUID) {
	delete(s.Participants, playerID)
}

// SetAIProfiles installs the driver profiles available for AI spawning.
func (s *Session) SetAIProfiles(profiles []ai.Profile) {
	s.AIProfiles = make(map[uuid.UUID]ai.Profile, len(profiles))
	for _, p := range profiles {
		s.AIProfiles[p.ID] = p
	}
}

// SpawnAIDrivers materializes up to AICount AI participants from the
// configured profiles not already spawned, each using its preferred car or
// an arbitrary catalogue entry.
func (s *Session) SpawnAIDrivers() {
	toSpawn := int(s.AICount) - len(s.AIPlayerIDs)
	if toSpawn <= 0 {
		return
	}

	var defaultCarID uuid.UUID
	for id := range s.cars {
		defaultCarID = id
		break
	}

	spawned := 0
	for _, p := range s.AIProfiles {
		if spawned >= toSpawn {
			break
		}
		already := false
		for _, id := range s.AIPlayerIDs {
			if id == p.ID {
				already = true
				break
			}
		}
		if already {
			continue
		}
		if len(s.Participants) >= int(s.MaxPlayers) {
			break
		}
		carID := p.PreferredCarID
		if carID == uuid.Nil {
			carID = defaultCarID
		}
		if _, ok := s.AddPlayer(p.ID, carID); ok {
			s.AIPlayerIDs = append(s.AIPlayerIDs, p.ID)
			spawned++
		}
	}
}

// IsAIPlayer reports whether playerID was spawned from an AI profile.
func (s *Session) IsAIPlayer(playerID uuid.UUID) bool {
	_, ok := s.AIProfiles[playerID]
	return ok
}

// Tick advances the session by one fixed timestep. inputs carries the
// latest human PlayerInput per participant for this tick; AI participants
// and any human without a fresh input are resolved internally.
func (s *Session) Tick(inputs map[uuid.UUID]physics.Input) {
	s.CurrentTick++

	switch s.State {
	case StateLobby, StateFinished:
		// no-op
	case StateCountdown:
		if s.CountdownTicks != nil {
			if *s.CountdownTicks > 0 {
				*s.CountdownTicks--
			} else {
				s.State = StateRacing
				start := s.CurrentTick
				s.RaceStartTick = &start
				s.CountdownTicks = nil
			}
		}
	case StateRacing:
		s.tickRacing(inputs)
	}
}

const fixedDT = 1.0 / tickRateHz

func (s *Session) tickRacing(inputs map[uuid.UUID]physics.Input) {
	trackLength := s.track.Length()

	for playerID, car := range s.Participants {
		cfg, ok := s.cars[car.CarConfigID]
		if !ok {
			continue
		}

		in, ok := inputs[playerID]
		if !ok {
			if profile, isAI := s.AIProfiles[playerID]; isAI {
				in = ai.GenerateInput(profile, s.track, cfg, car, s.CurrentTick)
			}
			// else: coast (zero input)
		}
		in.Clamp()

		physics.Step(car, cfg, in, fixedDT)
		physics.UpdateTrackProgress(car, s.track.Centerline, trackLength, s.CurrentTick, tickRateHz)
	}

	cars := make([]*types.CarState, 0, len(s.Participants))
	for _, c := range s.Participants {
		cars = append(cars, c)
	}
	physics.ResolveCollisions(cars, s.cars)

	if s.isRaceComplete() {
		s.State = StateFinished
		s.assignFinishPositions()
	}
}

func (s *Session) isRaceComplete() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, c := range s.Participants {
		if c.CurrentLap <= uint16(s.LapLimit) {
			return false
		}
	}
	return true
}

func (s *Session) assignFinishPositions() {
	type finisher struct {
		id       uuid.UUID
		lap      uint16
		progress float32
	}
	finishers := make([]finisher, 0, len(s.Participants))
	for id, c := range s.Participants {
		finishers = append(finishers, finisher{id, c.CurrentLap, c.TrackProgress})
	}
	sort.Slice(finishers, func(i, j int) bool {
		if finishers[i].lap != finishers[j].lap {
			return finishers[i].lap > finishers[j].lap
		}
		return finishers[i].progress > finishers[j].progress
	})
	for i, f := range finishers {
		pos := uint8(i + 1)
		s.Participants[f.id].FinishPosition = &pos
	}
}
