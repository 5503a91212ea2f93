package physics

import (
	"math"

	"github.com/google/uuid"

	"raceserver/internal/catalog"
	"raceserver/internal/session/types"
)

const (
	collisionSeparationM  = 0.5
	collisionSpeedScale   = 0.8
	maxDamagePerEventPct  = 5.0
)

// ResolveCollisions resets every car's colliding flag, then checks all
// pairs for axis-aligned box overlap. Colliding pairs are pushed apart
// along the separation normal, have their speed scaled down, and take
// damage proportional to combined speed, distributed to a body region by
// impact angle.
func ResolveCollisions(cars []*types.CarState, cfgs map[uuid.UUID]catalog.CarConfig) {
	for _, c := range cars {
		c.IsColliding = false
	}

	for i := 0; i < len(cars); i++ {
		for j := i + 1; j < len(cars); j++ {
			a, b := cars[i], cars[j]
			cfgA, okA := cfgs[a.CarConfigID]
			cfgB, okB := cfgs[b.CarConfigID]
			if !okA || !okB {
				continue
			}
			if !aabbOverlap(a, cfgA, b, cfgB) {
				continue
			}

			a.IsColliding = true
			b.IsColliding = true

			dx := b.PosX - a.PosX
			dy := b.PosY - a.PosY
			dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
			if dist < 0.1 {
				dist = 0.1
			}
			nx := dx / dist
			ny := dy / dist

			a.PosX -= nx * collisionSeparationM
			a.PosY -= ny * collisionSeparationM
			b.PosX += nx * collisionSeparationM
			b.PosY += ny * collisionSeparationM

			speedA, speedB := a.SpeedMPS, b.SpeedMPS
			yawA, yawB := a.YawRad, b.YawRad

			a.SpeedMPS *= collisionSpeedScale
			b.SpeedMPS *= collisionSpeedScale

			severity := minf((speedA+speedB)/50.0, 1.0)
			damage := severity * maxDamagePerEventPct

			angleA := rem2Pi(float32(math.Atan2(float64(ny), float64(nx))) - yawA)
			angleB := rem2Pi(float32(math.Atan2(float64(ny), float64(nx))) - yawB + math.Pi)

			applyDamage(a, angleA, damage)
			applyDamage(b, angleB, damage)
		}
	}
}

func aabbOverlap(a *types.CarState, cfgA catalog.CarConfig, b *types.CarState, cfgB catalog.CarConfig) bool {
	halfWA, halfLA := cfgA.WidthM/2, cfgA.LengthM/2
	halfWB, halfLB := cfgB.WidthM/2, cfgB.LengthM/2
	dx := absf(a.PosX - b.PosX)
	dy := absf(a.PosY - b.PosY)
	return dx < (halfLA+halfLB) && dy < (halfWA+halfWB)
}

func applyDamage(car *types.CarState, angle float32, amount float32) {
	quarter := float32(math.Pi / 4)
	switch {
	case angle < quarter || angle > 7*quarter:
		car.Damage.FrontDamagePercent = minf(car.Damage.FrontDamagePercent+amount, 100)
		car.Damage.EngineDamagePercent = minf(car.Damage.EngineDamagePercent+amount*0.5, 100)
	case angle >= quarter && angle < 3*quarter:
		car.Damage.LeftDamagePercent = minf(car.Damage.LeftDamagePercent+amount, 100)
	case angle >= 3*quarter && angle < 5*quarter:
		car.Damage.RearDamagePercent = minf(car.Damage.RearDamagePercent+amount, 100)
	default:
		car.Damage.RightDamagePercent = minf(car.Damage.RightDamagePercent+amount, 100)
	}
	car.Damage.IsDrivable = car.Damage.FrontDamagePercent < 80 && car.Damage.EngineDamagePercent < 80
}

func rem2Pi(v float32) float32 {
	twoPi := float32(2 * math.Pi)
	r := float32(math.Mod(float64(v), float64(twoPi)))
	if r < 0 {
		r += twoPi
	}
	return r
}

// UpdateTrackProgress finds the nearest centerline point to the car's
// current position and updates track_progress, detecting lap completion
// (progress wrapping from near-end to near-start) and the lap-1 start
// condition (forward crossing of the start line before any lap has been
// counted). currentTick and tickRateHz feed the lap-time computation.
func UpdateTrackProgress(car *types.CarState, centerline []catalog.TrackPoint, trackLength float32, currentTick uint32, tickRateHz float64) {
	if len(centerline) == 0 {
		return
	}

	minDist := float32(math.MaxFloat32)
	nearest := 0
	for idx, pt := range centerline {
		dx := car.PosX - pt.X
		dy := car.PosY - pt.Y
		d := dx*dx + dy*dy
		if d < minDist {
			minDist = d
			nearest = idx
		}
	}

	oldProgress := car.TrackProgress
	car.TrackProgress = centerline[nearest].DistanceFromStartM

	if car.CurrentLap > 0 && oldProgress > trackLength*0.8 && car.TrackProgress < trackLength*0.2 {
		car.CurrentLap++

		lapTimeMS := uint32(float64(currentTick) * 1000.0 / tickRateHz)
		car.LastLapTimeMS = &lapTimeMS
		if car.BestLapTimeMS == nil || lapTimeMS < *car.BestLapTimeMS {
			best := lapTimeMS
			car.BestLapTimeMS = &best
		}
	}

	if car.CurrentLap == 0 && car.TrackProgress > trackLength*0.1 {
		car.CurrentLap = 1
	}
}
