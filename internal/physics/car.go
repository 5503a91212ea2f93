// Package physics is the server's own longitudinal/lateral car model and
// collision resolver. It plays the role spec.md assigns to an external
// "pure function step(state, config, input, dt) -> state'" consumer, kept
// in-repo because no physics engine exists anywhere in the retrieval pack
// to bind it to; every formula here is ported in meaning (not in Rust
// syntax or naming) from the reference implementation's force/steering/
// telemetry model.
package physics

import (
	"math"

	"raceserver/internal/catalog"
	"raceserver/internal/session/types"
)

const (
	rollingResistanceN = 100.0
	gravityMPS2         = 9.81
	maxRPM              = 8000.0
	idleRPM             = 1000.0
)

// Input is the effective per-tick control input applied to a car, already
// resolved from human or AI sources and clamped to its legal range.
type Input struct {
	Throttle float32 // [0, 1]
	Brake    float32 // [0, 1]
	Steering float32 // [-1, 1]
}

// Clamp restricts an Input to its legal range in place.
func (in *Input) Clamp() {
	in.Throttle = clamp(in.Throttle, 0, 1)
	in.Brake = clamp(in.Brake, 0, 1)
	in.Steering = clamp(in.Steering, -1, 1)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Step integrates one tick of longitudinal/lateral dynamics and refreshes
// derived telemetry (G-forces, RPM, fuel, tire, suspension). Pure except
// for mutating car in place; it does not touch track progress or
// collisions, handled separately so each concern can be tested in
// isolation.
func Step(car *types.CarState, cfg catalog.CarConfig, in Input, dt float32) {
	throttleForce := in.Throttle * cfg.MaxEngineForceN
	brakeForce := in.Brake * cfg.MaxBrakeForceN
	dragForce := cfg.DragCoefficient * car.SpeedMPS * car.SpeedMPS
	netForce := throttleForce - brakeForce - dragForce - rollingResistanceN*sign(car.SpeedMPS)
	accel := netForce / cfg.MassKg
	longitudinalG := accel / gravityMPS2

	car.SpeedMPS = maxf(car.SpeedMPS+accel*dt, 0)

	steeringAngle := in.Steering * cfg.MaxSteeringAngleRad
	if absf(steeringAngle) > 0.001 && car.SpeedMPS > 0.1 {
		turnRadius := cfg.WheelbaseM / maxf(absf(float32(math.Tan(float64(steeringAngle)))), 0.001)
		car.AngularVelRadS = car.SpeedMPS / turnRadius * sign(steeringAngle)
	} else {
		car.AngularVelRadS = 0
	}

	maxLateralAccel := cfg.GripCoefficient * gravityMPS2
	actualLateralAccel := car.SpeedMPS * absf(car.AngularVelRadS)
	if actualLateralAccel > maxLateralAccel && actualLateralAccel > 0 {
		car.AngularVelRadS *= maxLateralAccel / actualLateralAccel
	}
	lateralG := (car.SpeedMPS * car.AngularVelRadS) / gravityMPS2

	car.YawRad += car.AngularVelRadS * dt
	car.VelX = car.SpeedMPS * float32(math.Cos(float64(car.YawRad)))
	car.VelY = car.SpeedMPS * float32(math.Sin(float64(car.YawRad)))
	car.PosX += car.VelX * dt
	car.PosY += car.VelY * dt

	car.ThrottleInput = in.Throttle
	car.BrakeInput = in.Brake
	car.SteeringInput = in.Steering

	updateTelemetry(car, in, longitudinalG, lateralG, dt)
}

func updateTelemetry(car *types.CarState, in Input, longitudinalG, lateralG, dt float32) {
	car.GForces.LongitudinalG = longitudinalG
	car.GForces.LateralG = lateralG
	car.GForces.VerticalG = 1.0

	speedFactor := clamp(car.SpeedMPS/50.0, 0, 1)
	car.EngineRPM = idleRPM + (maxRPM-idleRPM)*speedFactor*(0.5+in.Throttle*0.5)

	const baseConsumption = 0.0001
	const maxConsumption = 0.003
	car.FuelConsumptionLPS = baseConsumption + (maxConsumption-baseConsumption)*in.Throttle
	car.FuelLiters = maxf(car.FuelLiters-car.FuelConsumptionLPS*dt, 0)

	speedKMH := car.SpeedMPS * 3.6
	const baseTemp = 80.0
	tempFromSpeed := speedKMH * 0.3
	tempFromBraking := in.Brake * 20.0
	tempFromCornering := absf(lateralG) * 15.0
	tireTemp := baseTemp + tempFromSpeed + tempFromBraking + tempFromCornering
	tirePressure := 200.0 + tireTemp*0.5

	var slipRatio float32
	switch {
	case in.Brake > 0.5:
		slipRatio = in.Brake * 0.15
	case in.Throttle > 0.8 && car.SpeedMPS < 20.0:
		slipRatio = in.Throttle * 0.1
	}
	slipAngle := car.SteeringInput * 0.1

	frontTemp := tireTemp + absf(lateralG)*5.0
	wearStep := float32(0.0001) * dt

	car.Tires.FrontLeft.TemperatureC = frontTemp
	car.Tires.FrontLeft.PressureKPa = tirePressure
	car.Tires.FrontLeft.WearPercent = minf(car.Tires.FrontLeft.WearPercent+wearStep, 100)
	car.Tires.FrontLeft.SlipRatio = slipRatio
	car.Tires.FrontLeft.SlipAngleRad = slipAngle

	car.Tires.FrontRight.TemperatureC = frontTemp
	car.Tires.FrontRight.PressureKPa = tirePressure
	car.Tires.FrontRight.WearPercent = minf(car.Tires.FrontRight.WearPercent+wearStep, 100)
	car.Tires.FrontRight.SlipRatio = slipRatio
	car.Tires.FrontRight.SlipAngleRad = slipAngle

	car.Tires.RearLeft.TemperatureC = tireTemp
	car.Tires.RearLeft.PressureKPa = tirePressure
	car.Tires.RearLeft.WearPercent = minf(car.Tires.RearLeft.WearPercent+wearStep, 100)
	car.Tires.RearLeft.SlipRatio = slipRatio * 1.2
	car.Tires.RearLeft.SlipAngleRad = slipAngle * 0.5

	car.Tires.RearRight.TemperatureC = tireTemp
	car.Tires.RearRight.PressureKPa = tirePressure
	car.Tires.RearRight.WearPercent = minf(car.Tires.RearRight.WearPercent+wearStep, 100)
	car.Tires.RearRight.SlipRatio = slipRatio * 1.2
	car.Tires.RearRight.SlipAngleRad = slipAngle * 0.5

	const baseCompression = 0.05
	car.Suspension.FrontLeftTravelM = baseCompression + absf(lateralG)*0.01 + maxf(longitudinalG, 0)*0.015
	car.Suspension.FrontRightTravelM = baseCompression + absf(lateralG)*0.01 + maxf(longitudinalG, 0)*0.015
	car.Suspension.RearLeftTravelM = baseCompression + absf(lateralG)*0.008 + maxf(-longitudinalG, 0)*0.015
	car.Suspension.RearRightTravelM = baseCompression + absf(lateralG)*0.008 + maxf(-longitudinalG, 0)*0.015
}

func sign(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
