package ai

import (
	"testing"

	"raceserver/internal/catalog"
	"raceserver/internal/session/types"
)

func TestGenerateInputStaysInRange(t *testing.T) {
	profile := NewProfile("Test", 90)
	track := catalog.DefaultTrackConfig()
	carConfig := catalog.DefaultCarConfig()
	car := types.NewCarState([16]byte{1}, [16]byte{2}, 1, track.StartPositions[0].X, track.StartPositions[0].Y, 0)

	in := GenerateInput(profile, track, carConfig, car, 100)

	if in.Throttle < 0 || in.Throttle > 1 {
		t.Errorf("throttle out of range: %v", in.Throttle)
	}
	if in.Brake < 0 || in.Brake > 1 {
		t.Errorf("brake out of range: %v", in.Brake)
	}
	if in.Steering < -1 || in.Steering > 1 {
		t.Errorf("steering out of range: %v", in.Steering)
	}
}

func TestSkillClamping(t *testing.T) {
	low := NewProfile("Low", 50)
	if low.SkillLevel != MinSkillLevel {
		t.Errorf("got %d, want %d", low.SkillLevel, MinSkillLevel)
	}
	high := NewProfile("High", 150)
	if high.SkillLevel != MaxSkillLevel {
		t.Errorf("got %d, want %d", high.SkillLevel, MaxSkillLevel)
	}
}

func TestGenerateDefaultProfilesOrdering(t *testing.T) {
	profiles := GenerateDefaultProfiles(4)
	if len(profiles) != 4 {
		t.Fatalf("got %d profiles, want 4", len(profiles))
	}
	if profiles[0].SkillLevel > profiles[3].SkillLevel {
		t.Errorf("expected non-decreasing skill, got %d then %d", profiles[0].SkillLevel, profiles[3].SkillLevel)
	}
}

func TestCalculateGearStartsInFirst(t *testing.T) {
	car := types.NewCarState([16]byte{1}, [16]byte{2}, 1, 0, 0, 0)
	gear := calculateGear(car, catalog.DefaultCarConfig().MaxGear(), 0.5)
	if gear != 1 {
		t.Errorf("got gear %d, want 1", gear)
	}
}

func TestCarConfigMaxGearExcludesReverse(t *testing.T) {
	cfg := catalog.DefaultCarConfig()
	if got, want := cfg.MaxGear(), int8(6); got != want {
		t.Errorf("got %d forward gears, want %d", got, want)
	}
}

func TestCalculateGearRespectsPerCarMaxGear(t *testing.T) {
	car := types.NewCarState([16]byte{1}, [16]byte{2}, 1, 0, 0, 0)
	car.Gear = 3
	car.EngineRPM = 9000

	gear := calculateGear(car, 3, 0.5)
	if gear != 3 {
		t.Errorf("got gear %d, want 3 (already at this car's max gear)", gear)
	}
}
