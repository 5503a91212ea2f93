// Package types holds the simulation value types (CarState and its
// telemetry structs) shared by internal/physics,
// internal/ai, and internal/session. It is split out from internal/session
// itself so the physics and AI packages can depend on the data shapes
// without importing the session tick loop that owns them.
package types

import "github.com/google/uuid"

// TireData is per-wheel telemetry.
type TireData struct {
	TemperatureC float32
	PressureKPa  float32
	WearPercent  float32
	SlipRatio    float32
	SlipAngleRad float32
}

// TireTelemetry groups all four wheels.
type TireTelemetry struct {
	FrontLeft  TireData
	FrontRight TireData
	RearLeft   TireData
	RearRight  TireData
}

// GForces is the car's instantaneous acceleration in g.
type GForces struct {
	LateralG      float32
	LongitudinalG float32
	VerticalG     float32
}

// SuspensionTelemetry is per-wheel suspension travel.
type SuspensionTelemetry struct {
	FrontLeftTravelM  float32
	FrontRightTravelM float32
	RearLeftTravelM   float32
	RearRightTravelM  float32
}

// DamageState tracks accumulated structural damage.
type DamageState struct {
	FrontDamagePercent  float32
	RearDamagePercent   float32
	LeftDamagePercent   float32
	RightDamagePercent  float32
	EngineDamagePercent float32
	IsDrivable          bool
}

// CarState is the per-participant simulation state the ServerLoop owns as
// part of its enclosing RaceSession.
type CarState struct {
	PlayerID     uuid.UUID
	CarConfigID  uuid.UUID
	GridPosition uint8

	PosX, PosY, PosZ float32
	YawRad           float32
	VelX, VelY       float32
	SpeedMPS         float32
	AngularVelRadS   float32

	ThrottleInput float32
	BrakeInput    float32
	SteeringInput float32
	Gear          int8

	TrackProgress float32
	CurrentLap    uint16

	FinishPosition *uint8
	LastLapTimeMS  *uint32
	BestLapTimeMS  *uint32

	IsColliding bool

	Tires      TireTelemetry
	GForces    GForces
	Suspension SuspensionTelemetry

	FuelLiters         float32
	FuelCapacityLiters float32
	FuelConsumptionLPS float32

	Damage    DamageState
	EngineRPM float32
}

// NewCarState places a fresh car at the given grid slot.
func NewCarState(playerID, carConfigID uuid.UUID, gridPos uint8, startX, startY, startYaw float32) *CarState {
	return &CarState{
		PlayerID:           playerID,
		CarConfigID:        carConfigID,
		GridPosition:       gridPos,
		PosX:               startX,
		PosY:               startY,
		YawRad:             startYaw,
		FuelLiters:         100,
		FuelCapacityLiters: 100,
		Damage:             DamageState{IsDrivable: true},
	}
}
