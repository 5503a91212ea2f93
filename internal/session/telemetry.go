package session

import "raceserver/internal/protocol"

// Telemetry returns the wire-facing snapshot of every participant plus the
// session's own tick/state/countdown.
func (s *Session) Telemetry() protocol.Envelope {
	frames := make([]protocol.CarFrame, 0, len(s.Participants))
	for _, c := range s.Participants {
		frames = append(frames, protocol.CarFrame{
			PlayerID:       c.PlayerID.String(),
			GridPosition:   c.GridPosition,
			PosX:           c.PosX,
			PosY:           c.PosY,
			PosZ:           c.PosZ,
			YawRad:         c.YawRad,
			SpeedMPS:       c.SpeedMPS,
			ThrottleInput:  c.ThrottleInput,
			BrakeInput:     c.BrakeInput,
			SteeringInput:  c.SteeringInput,
			EngineRPM:      c.EngineRPM,
			TrackProgress:  c.TrackProgress,
			CurrentLap:     c.CurrentLap,
			LastLapTimeMS:  c.LastLapTimeMS,
			BestLapTimeMS:  c.BestLapTimeMS,
			FinishPosition: c.FinishPosition,
			IsColliding:    c.IsColliding,
			FuelLiters:     c.FuelLiters,
		})
	}

	var countdownMS int64
	if s.CountdownTicks != nil {
		countdownMS = int64(*s.CountdownTicks) * 1000 / tickRateHz
	}

	return protocol.Envelope{
		Type:         protocol.TypeTelemetry,
		SessionID:    s.ID.String(),
		SessionState: s.State.String(),
		CountdownMS:  countdownMS,
		CarStates:    frames,
	}
}

func (st State) String() string {
	switch st {
	case StateLobby:
		return "lobby"
	case StateCountdown:
		return "countdown"
	case StateRacing:
		return "racing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}
