// Package protocol defines the wire grammar shared by the control stream
// and the input/telemetry datagram channel, and the framing used to carry
// it over a reliable byte stream.
package protocol

// Type discriminates the envelope's payload. The stream decoder does not
// check it; the ServerLoop ignores any type it does not handle, and the
// datagram decoder accepts only TypePlayerInput.
type Type string

const (
	// Control-plane, client -> server.
	TypeAuthenticate       Type = "authenticate"
	TypeHeartbeat          Type = "heartbeat"
	TypeSelectCar          Type = "select_car"
	TypeRequestLobbyState  Type = "request_lobby_state"
	TypeCreateSession      Type = "create_session"
	TypeJoinSession        Type = "join_session"
	TypeJoinAsSpectator    Type = "join_as_spectator"
	TypeLeaveSession       Type = "leave_session"
	TypeStartSession       Type = "start_session"
	TypeDisconnect         Type = "disconnect"

	// Data-plane, client -> server, unreliable.
	TypePlayerInput Type = "player_input"

	// Control-plane, server -> client.
	TypeAuthSuccess       Type = "auth_success"
	TypeAuthFailure       Type = "auth_failure"
	TypeHeartbeatAck      Type = "heartbeat_ack"
	TypeLobbyState        Type = "lobby_state"
	TypeSessionJoined     Type = "session_joined"
	TypeSessionLeft       Type = "session_left"
	TypeSessionStarting   Type = "session_starting"
	TypeError             Type = "error"
	TypePlayerDisconnected Type = "player_disconnected"
	TypeTelemetry         Type = "telemetry"
)

// Priority governs the TransportLayer's bounded-queue backpressure policy.
type Priority int

const (
	Droppable Priority = iota
	Critical
)

// Priority classifies a server->client message type per the contract in
// §4.1: Critical messages block the outbound queue briefly rather than
// being dropped; Droppable messages are discarded immediately when the
// queue is full.
func (t Type) Priority() Priority {
	switch t {
	case TypeAuthSuccess, TypeAuthFailure, TypeError,
		TypeSessionJoined, TypeSessionLeft, TypeSessionStarting:
		return Critical
	default:
		return Droppable
	}
}

// Envelope is the single wire struct carrying every message variant, kept
// flat with a Type discriminator rather than modeled as separate framed
// types: unused fields are omitted on the wire and ignored by receivers
// that don't need them, so adding a field is backward compatible.
type Envelope struct {
	Type Type `json:"type"`

	// Authenticate / AuthSuccess / AuthFailure
	Token         string `json:"token,omitempty"`
	Name          string `json:"name,omitempty"`
	PlayerID      string `json:"player_id,omitempty"`
	UDPSecret     []byte `json:"udp_secret,omitempty"`
	ServerVersion int    `json:"server_version,omitempty"`
	Reason        string `json:"reason,omitempty"`

	// Heartbeat / HeartbeatAck
	ClientTick uint32 `json:"client_tick,omitempty"`
	ServerTick uint32 `json:"server_tick,omitempty"`

	// SelectCar
	CarConfigID string `json:"car_config_id,omitempty"`

	// CreateSession
	TrackConfigID string `json:"track_config_id,omitempty"`
	MaxPlayers    uint8  `json:"max_players,omitempty"`
	AICount       uint8  `json:"ai_count,omitempty"`
	LapLimit      uint8  `json:"lap_limit,omitempty"`
	SessionKind   string `json:"session_kind,omitempty"`

	// JoinSession / JoinAsSpectator / SessionJoined
	SessionID    string `json:"session_id,omitempty"`
	GridPosition uint8  `json:"grid_position,omitempty"`

	// SessionStarting
	CountdownSeconds int `json:"countdown_seconds,omitempty"`

	// Error
	Code int `json:"code,omitempty"`

	// PlayerDisconnected
	DisconnectedPlayerID string `json:"disconnected_player_id,omitempty"`

	// LobbyState
	Players  []PlayerSummary  `json:"players,omitempty"`
	Sessions []SessionSummary `json:"sessions,omitempty"`
	Cars     []CatalogEntry   `json:"cars,omitempty"`
	Tracks   []CatalogEntry   `json:"tracks,omitempty"`

	// Telemetry
	SessionState string      `json:"session_state,omitempty"`
	CountdownMS  int64       `json:"countdown_ms,omitempty"`
	CarStates    []CarFrame  `json:"car_states,omitempty"`

	// PlayerInput (datagram)
	ServerTickAck uint32  `json:"server_tick_ack,omitempty"`
	Throttle      float32 `json:"throttle,omitempty"`
	Brake         float32 `json:"brake,omitempty"`
	Steering      float32 `json:"steering,omitempty"`
}

// PlayerSummary is the lobby-facing projection of a Player record.
type PlayerSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsAI   bool   `json:"is_ai"`
}

// SessionSummary is the lobby-facing projection of a LobbySession.
type SessionSummary struct {
	ID                string `json:"id"`
	HostPlayerID      string `json:"host_player_id"`
	TrackName         string `json:"track_name"`
	TrackConfigID     string `json:"track_config_id"`
	Kind              string `json:"kind"`
	MaxPlayers        uint8  `json:"max_players"`
	PlayerCount       int    `json:"player_count"`
	SpectatorCount    int    `json:"spectator_count"`
	State             string `json:"state"`
	Visibility        string `json:"visibility"`
	PasswordRequired  bool   `json:"password_required"`
}

// CatalogEntry names an available CarConfig or TrackConfig without shipping
// its full body over the lobby snapshot.
type CatalogEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CarFrame is the per-participant projection carried by a Telemetry message.
type CarFrame struct {
	PlayerID       string  `json:"player_id"`
	GridPosition   uint8   `json:"grid_position"`
	PosX           float32 `json:"pos_x"`
	PosY           float32 `json:"pos_y"`
	PosZ           float32 `json:"pos_z"`
	YawRad         float32 `json:"yaw_rad"`
	SpeedMPS       float32 `json:"speed_mps"`
	ThrottleInput  float32 `json:"throttle_input"`
	BrakeInput     float32 `json:"brake_input"`
	SteeringInput  float32 `json:"steering_input"`
	EngineRPM      float32 `json:"engine_rpm"`
	TrackProgress  float32 `json:"track_progress"`
	CurrentLap     uint16  `json:"current_lap"`
	LastLapTimeMS  *uint32 `json:"last_lap_time_ms,omitempty"`
	BestLapTimeMS  *uint32 `json:"best_lap_time_ms,omitempty"`
	FinishPosition *uint8  `json:"finish_position,omitempty"`
	IsColliding    bool    `json:"is_colliding"`
	FuelLiters     float32 `json:"fuel_liters"`
}
