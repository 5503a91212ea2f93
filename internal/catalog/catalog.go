// Package catalog holds the immutable CarConfig/TrackConfig catalogues
// loaded once at startup. Track/car geometry authoring (spline
// interpolation, mesh export, procedural terrain) lives outside this
// repository; catalog consumes the result as plain data.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CarConfig is immutable once loaded; fields mirror the authoritative
// layout used by the simulation's physics step.
type CarConfig struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	MassKg             float32   `json:"mass_kg"`
	LengthM            float32   `json:"length_m"`
	WidthM             float32   `json:"width_m"`
	MaxEngineForceN    float32   `json:"max_engine_force_n"`
	MaxBrakeForceN     float32   `json:"max_brake_force_n"`
	DragCoefficient    float32   `json:"drag_coefficient"`
	GripCoefficient    float32   `json:"grip_coefficient"`
	MaxSteeringAngleRad float32  `json:"max_steering_angle_rad"`
	WheelbaseM         float32   `json:"wheelbase_m"`

	// Engine & drivetrain. GearRatios holds one entry per forward gear plus
	// a leading negative reverse ratio; MaxGear counts the positive entries
	// rather than being configured separately, the way the AI driver model
	// derives it.
	MaxEngineTorqueNm float32   `json:"max_engine_torque_nm"`
	MaxEngineRPM      float32   `json:"max_engine_rpm"`
	IdleRPM           float32   `json:"idle_rpm"`
	RedlineRPM        float32   `json:"redline_rpm"`
	GearRatios        []float32 `json:"gear_ratios"`
}

// MaxGear is the highest forward gear this car supports, derived from the
// count of positive entries in GearRatios (a leading negative entry, if
// present, is the reverse ratio and doesn't count).
func (c CarConfig) MaxGear() int8 {
	var n int8
	for _, g := range c.GearRatios {
		if g > 0 {
			n++
		}
	}
	return n
}

// DefaultCarConfig matches the stock car used when no catalogue entry is
// selected.
func DefaultCarConfig() CarConfig {
	return CarConfig{
		ID:                  uuid.New(),
		Name:                "Default Car",
		MassKg:              1000.0,
		LengthM:             4.0,
		WidthM:              2.0,
		MaxEngineForceN:     8000.0,
		MaxBrakeForceN:      15000.0,
		DragCoefficient:     0.35,
		GripCoefficient:     1.0,
		MaxSteeringAngleRad: 0.5,
		WheelbaseM:          2.5,
		MaxEngineTorqueNm:   450.0,
		MaxEngineRPM:        8000.0,
		IdleRPM:             900.0,
		RedlineRPM:          7500.0,
		GearRatios:          []float32{-3.5, 3.8, 2.4, 1.7, 1.3, 1.0, 0.8},
	}
}

// TrackPoint is one sample of the centerline polyline.
type TrackPoint struct {
	X                  float32 `json:"x"`
	Y                  float32 `json:"y"`
	Z                  float32 `json:"z"`
	DistanceFromStartM float32 `json:"distance_from_start_m"`
	WidthLeftM         float32 `json:"width_left_m"`
	WidthRightM        float32 `json:"width_right_m"`
	BankingRad         float32 `json:"banking_rad"`
	HeadingRad         float32 `json:"heading_rad"`
	Surface            string  `json:"surface"`
	Grip               float32 `json:"grip"`
}

// GridSlot is a starting position, indexed from 1.
type GridSlot struct {
	Position uint8   `json:"position"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Z        float32 `json:"z"`
	YawRad   float32 `json:"yaw_rad"`
}

// TrackConfig is immutable once loaded.
type TrackConfig struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Centerline     []TrackPoint `json:"centerline"`
	WidthM         float32      `json:"width_m"`
	StartPositions []GridSlot   `json:"start_positions"`
}

// Length returns the distance from start of the last centerline sample. The
// segment from the last sample back to the first is not included.
func (t TrackConfig) Length() float32 {
	if len(t.Centerline) == 0 {
		return 0
	}
	return t.Centerline[len(t.Centerline)-1].DistanceFromStartM
}

// DefaultTrackConfig is a simple oval, used when tracks_dir is unset, missing,
// or holds no *.json files, so the server always has something to advertise.
func DefaultTrackConfig() TrackConfig {
	const numPoints = 20
	const radius = 100.0

	centerline := make([]TrackPoint, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		angle := 2.0 * math.Pi * float32(i) / float32(numPoints)
		x := radius * float32(math.Cos(float64(angle)))
		y := radius * float32(math.Sin(float64(angle)))
		centerline = append(centerline, TrackPoint{
			X: x, Y: y,
			DistanceFromStartM: angle * radius,
			WidthLeftM:         7.5,
			WidthRightM:        7.5,
			Grip:               1.0,
		})
	}

	starts := make([]GridSlot, 0, 16)
	for i := 0; i < 16; i++ {
		y := float32(-2.0)
		if i%2 != 0 {
			y = 2.0
		}
		starts = append(starts, GridSlot{
			Position: uint8(i + 1),
			X:        radius - float32(i/2)*5.0,
			Y:        y,
		})
	}

	return TrackConfig{
		ID:             uuid.New(),
		Name:           "Default Oval",
		Centerline:     centerline,
		WidthM:         15.0,
		StartPositions: starts,
	}
}

// Catalog is the shared, read-only fan-out of loaded content. It is built
// once at startup and never mutated afterward, so it may be read from any
// goroutine without synchronization.
type Catalog struct {
	Cars   map[uuid.UUID]CarConfig
	Tracks map[uuid.UUID]TrackConfig
}

// Load reads every *.json file in carsDir and tracksDir into a Catalog. A
// directory that doesn't exist or is empty is not an error: the catalog
// falls back to a single default car and track so the server still starts.
func Load(carsDir, tracksDir string) (*Catalog, error) {
	cat := &Catalog{
		Cars:   make(map[uuid.UUID]CarConfig),
		Tracks: make(map[uuid.UUID]TrackConfig),
	}

	cars, err := loadDir[CarConfig](carsDir)
	if err != nil {
		return nil, fmt.Errorf("catalog: load cars: %w", err)
	}
	for _, c := range cars {
		cat.Cars[c.ID] = c
	}
	if len(cat.Cars) == 0 {
		def := DefaultCarConfig()
		cat.Cars[def.ID] = def
	}

	tracks, err := loadDir[TrackConfig](tracksDir)
	if err != nil {
		return nil, fmt.Errorf("catalog: load tracks: %w", err)
	}
	for _, tc := range tracks {
		cat.Tracks[tc.ID] = tc
	}
	if len(cat.Tracks) == 0 {
		def := DefaultTrackConfig()
		cat.Tracks[def.ID] = def
	}

	return cat, nil
}

type idHaver interface {
	CarConfig | TrackConfig
}

func loadDir[T idHaver](dir string) ([]T, error) {
	var out []T
	if dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Name(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
