package physics

import (
	"testing"

	"github.com/google/uuid"

	"raceserver/internal/catalog"
	"raceserver/internal/session/types"
)

func newTestCar() *types.CarState {
	return types.NewCarState([16]byte{1}, [16]byte{2}, 1, 0, 0, 0)
}

func TestStepAccelerationIncreasesSpeed(t *testing.T) {
	car := newTestCar()
	cfg := catalog.DefaultCarConfig()
	in := Input{Throttle: 1.0}
	Step(car, cfg, in, 1.0/240.0)

	if car.SpeedMPS <= 0 {
		t.Fatalf("expected speed to increase, got %v", car.SpeedMPS)
	}
}

func TestStepBrakingDecreasesSpeed(t *testing.T) {
	car := newTestCar()
	car.SpeedMPS = 10
	car.VelX = 10
	cfg := catalog.DefaultCarConfig()
	in := Input{Brake: 1.0}
	Step(car, cfg, in, 1.0/240.0)

	if car.SpeedMPS >= 10 {
		t.Fatalf("expected speed to decrease from 10, got %v", car.SpeedMPS)
	}
}

func TestStepNeverReverses(t *testing.T) {
	car := newTestCar()
	cfg := catalog.DefaultCarConfig()
	in := Input{Brake: 1.0}
	for i := 0; i < 1000; i++ {
		Step(car, cfg, in, 1.0/240.0)
	}
	if car.SpeedMPS < 0 {
		t.Fatalf("speed went negative: %v", car.SpeedMPS)
	}
}

func TestResolveCollisionsPushesApartAndDamps(t *testing.T) {
	cfg := catalog.DefaultCarConfig()
	cfg.LengthM = 4.0
	cfg.WidthM = 2.0

	carA := types.NewCarState([16]byte{1}, cfg.ID, 1, 0, 0, 0)
	carB := types.NewCarState([16]byte{2}, cfg.ID, 2, 1.0, 0, 0)
	carA.SpeedMPS = 10
	carB.SpeedMPS = 10

	ResolveCollisions([]*types.CarState{carA, carB}, map[uuid.UUID]catalog.CarConfig{cfg.ID: cfg})

	if !carA.IsColliding || !carB.IsColliding {
		t.Fatal("expected both cars marked colliding")
	}
	dist := carB.PosX - carA.PosX
	if dist < 2.0-0.001 {
		t.Fatalf("expected separation >= 2.0, got %v", dist)
	}
	if carA.SpeedMPS != 8.0 || carB.SpeedMPS != 8.0 {
		t.Fatalf("expected speeds scaled to 8.0, got %v %v", carA.SpeedMPS, carB.SpeedMPS)
	}
}

func TestUpdateTrackProgressRegistersLap(t *testing.T) {
	centerline := []catalog.TrackPoint{
		{X: 0, Y: 0, DistanceFromStartM: 0},
		{X: 500, Y: 0, DistanceFromStartM: 500},
		{X: 900, Y: 0, DistanceFromStartM: 900},
		{X: 100, Y: 0, DistanceFromStartM: 100},
	}
	car := newTestCar()
	car.CurrentLap = 1
	car.TrackProgress = 900
	car.PosX = 100

	UpdateTrackProgress(car, centerline, 1000, 1001, 240)

	if car.CurrentLap != 2 {
		t.Fatalf("expected lap increment to 2, got %d", car.CurrentLap)
	}
	if car.LastLapTimeMS == nil {
		t.Fatal("expected last lap time to be set")
	}
}
