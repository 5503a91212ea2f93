// Package ai synthesizes PlayerInput for computer-controlled cars, playing
// the "AiInputController" role: given a profile, the track, the car
// config, and the current CarState, it produces the same shape of input a
// human would send. Ported in meaning from the reference driver model
// (server/src/ai_driver.rs), not translated line for line.
package ai

import (
	"github.com/google/uuid"

	"raceserver/internal/catalog"
)

const (
	MinSkillLevel     uint8 = 70
	MaxSkillLevel     uint8 = 110
	DefaultSkillLevel uint8 = 90
)

// Profile describes one AI driver's behavior. Derived attributes are
// computed once from skill via NewProfile's monotone mappings; callers
// needing bespoke tuning can adjust the fields afterward.
type Profile struct {
	ID                 uuid.UUID
	Name               string
	SkillLevel         uint8
	Aggressiveness     float32
	Precision          float32
	ReactionTimeMS     uint16
	SteeringSmoothness float32
	RandomnessScale    float32
	Consistency        float32
	PreferredCarID     uuid.UUID // uuid.Nil means "use default car"
}

// NewProfile derives a full behavior profile from a clamped skill level.
func NewProfile(name string, skill uint8) Profile {
	skill = clampU8(skill, MinSkillLevel, MaxSkillLevel)
	norm := float32(skill-MinSkillLevel) / float32(MaxSkillLevel-MinSkillLevel)

	return Profile{
		ID:                 uuid.New(),
		Name:               name,
		SkillLevel:         skill,
		Aggressiveness:     clampF(norm*0.6+0.2, 0, 1),
		Precision:          clampF(norm*0.7+0.3, 0, 1),
		ReactionTimeMS:      uint16((1.0 - norm) * 150.0 + 50.0),
		SteeringSmoothness: clampF(norm*0.6+0.4, 0, 1),
		RandomnessScale:    clampF((1.0-norm)*0.15, 0, 1),
		Consistency:        clampF(norm*0.5+0.4, 0, 1),
	}
}

func (p Profile) skillFactor() float32 {
	return float32(p.SkillLevel-MinSkillLevel) / float32(MaxSkillLevel-MinSkillLevel)
}

func clampU8(v, lo, hi uint8) uint8 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// defaultDriverNames seeds generated rosters; driver 0 is the gentlest.
var defaultDriverNames = []string{
	"Max Voltage", "Luna Swift", "Rex Thunder", "Nova Blaze",
	"Kai Storm", "Zara Vortex", "Atlas Fury", "Iris Phantom",
	"Axel Shadow", "Maya Comet", "Orion Flash", "Sierra Bolt",
	"Dante Drift", "Echo Racer", "Felix Turbo", "Gwen Apex",
}

// GenerateDefaultProfiles builds count profiles spanning the skill range,
// from MinSkillLevel up to MaxSkillLevel, named from a fixed roster.
func GenerateDefaultProfiles(count int) []Profile {
	profiles := make([]Profile, 0, count)
	skillRange := int(MaxSkillLevel - MinSkillLevel)
	for i := 0; i < count; i++ {
		name := "AI Driver"
		if i < len(defaultDriverNames) {
			name = defaultDriverNames[i]
		}
		skill := int(MinSkillLevel)
		if count > 1 {
			skill += i * skillRange / (count - 1)
		}
		if skill > int(MaxSkillLevel) {
			skill = int(MaxSkillLevel)
		}
		profiles = append(profiles, NewProfile(name, uint8(skill)))
	}
	return profiles
}

// resolveCarConfig returns the profile's preferred car if present in the
// catalog, otherwise an arbitrary entry (the catalog always has at least
// the default car).
func resolveCarConfig(cat *catalog.Catalog, p Profile) catalog.CarConfig {
	if cfg, ok := cat.Cars[p.PreferredCarID]; ok {
		return cfg
	}
	for _, cfg := range cat.Cars {
		return cfg
	}
	return catalog.DefaultCarConfig()
}
