package ai

import (
	"math"

	"raceserver/internal/catalog"
	"raceserver/internal/physics"
	"raceserver/internal/session/types"
)

// GenerateInput synthesizes the effective control input for an AI-driven
// car on this tick. It implements the four tuned stages of the reference
// driver: a look-ahead target point on the centerline, proportional
// steering toward it, piecewise throttle/brake modulation toward a
// skill-scaled target speed, and RPM-threshold gear shifting bounded by
// the car's own gear count.
func GenerateInput(profile Profile, track catalog.TrackConfig, carConfig catalog.CarConfig, car *types.CarState, currentTick uint32) physics.Input {
	trackLength := track.Length()
	if trackLength == 0 {
		trackLength = 1000.0
	}
	skill := profile.skillFactor()

	baseTargetSpeed := 40.0 + skill*20.0
	noise := consistencyNoise(currentTick, profile.ID)
	targetSpeed := baseTargetSpeed * (1.0 + noise*(1.0-profile.Consistency)*0.15)

	lookAhead := 15.0 + skill*20.0
	targetProgress := car.TrackProgress + lookAhead
	wrapped := float32(math.Mod(float64(targetProgress), float64(trackLength)))
	target := nearestCenterlinePoint(track, wrapped)

	steering := calculateSteering(car, target, skill)
	throttle, brake := calculateThrottleBrake(car, targetSpeed, skill)
	car.Gear = calculateGear(car, carConfig.MaxGear(), skill)

	in := physics.Input{Throttle: throttle, Brake: brake, Steering: steering}
	in.Clamp()
	return in
}

func consistencyNoise(tick uint32, profileID [16]byte) float32 {
	var idLow uint64
	for i := 8; i < 16; i++ {
		idLow = idLow<<8 | uint64(profileID[i])
	}
	seed := uint64(tick) * idLow
	return float32(seed%1000)/500.0 - 1.0
}

func nearestCenterlinePoint(track catalog.TrackConfig, progress float32) catalog.TrackPoint {
	if len(track.Centerline) == 0 {
		return catalog.TrackPoint{}
	}
	best := track.Centerline[0]
	bestDiff := absf32(best.DistanceFromStartM - progress)
	for _, p := range track.Centerline[1:] {
		d := absf32(p.DistanceFromStartM - progress)
		if d < bestDiff {
			best = p
			bestDiff = d
		}
	}
	return best
}

func calculateSteering(car *types.CarState, target catalog.TrackPoint, skill float32) float32 {
	dx := target.X - car.PosX
	dy := target.Y - car.PosY
	targetAngle := float32(math.Atan2(float64(dy), float64(dx)))
	angleDiff := normalizeAngle(targetAngle - car.YawRad)

	steeringGain := 1.5 + skill*1.5
	smoothing := 0.5 + skill*0.5
	raw := angleDiff * steeringGain
	return clampF(raw*smoothing, -1, 1)
}

func calculateThrottleBrake(car *types.CarState, targetSpeed, skill float32) (throttle, brake float32) {
	speedDiff := targetSpeed - car.SpeedMPS
	modulation := 0.5 + skill*0.5

	switch {
	case speedDiff > 2.0:
		throttle = clampF((0.6+skill*0.4)*modulation, 0, 1)
		return throttle, 0
	case speedDiff < -5.0:
		brake = clampF((0.4+skill*0.3)*modulation, 0, 1)
		return 0, brake
	case speedDiff < 0.0:
		brake = clampF((-speedDiff/5.0)*0.3*modulation, 0, 0.3)
		return 0.1, brake
	default:
		throttle = clampF((0.5+speedDiff*0.1)*modulation, 0.3, 0.8)
		return throttle, 0
	}
}

func calculateGear(car *types.CarState, maxGear int8, skill float32) int8 {
	currentGear := car.Gear
	rpm := car.EngineRPM

	upshiftRPM := 6000.0 + skill*1500.0
	downshiftRPM := 2500.0 - skill*500.0

	if float32(rpm) > float32(upshiftRPM) && currentGear < maxGear && currentGear > 0 {
		return currentGear + 1
	}
	if float32(rpm) < float32(downshiftRPM) && currentGear > 1 {
		return currentGear - 1
	}
	if currentGear == 0 {
		return 1
	}
	return currentGear
}

func normalizeAngle(angle float32) float32 {
	pi := float32(math.Pi)
	a := float32(math.Mod(float64(angle+pi), float64(2*pi)))
	if a < 0 {
		a += 2 * pi
	}
	return a - pi
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
