package protocol

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	cases := []*Envelope{
		{Type: TypeAuthenticate, Token: "t", Name: "Alice"},
		{Type: TypeAuthSuccess, PlayerID: "p1", UDPSecret: make([]byte, 32), ServerVersion: 1},
		{Type: TypeTelemetry, SessionState: "racing", CarStates: []CarFrame{{PlayerID: "p1", SpeedMPS: 12.5}}},
	}
	for _, env := range cases {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, env); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if got.Type != env.Type {
			t.Errorf("got type %q, want %q", got.Type, env.Type)
		}
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadFrame(&buf)
	if err != ErrFrameTooLarge {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestPriorityClassification(t *testing.T) {
	critical := []Type{TypeAuthSuccess, TypeAuthFailure, TypeError, TypeSessionJoined, TypeSessionLeft, TypeSessionStarting}
	for _, ty := range critical {
		if ty.Priority() != Critical {
			t.Errorf("%q: got Droppable, want Critical", ty)
		}
	}
	droppable := []Type{TypeHeartbeatAck, TypeLobbyState, TypeTelemetry, TypePlayerDisconnected}
	for _, ty := range droppable {
		if ty.Priority() != Droppable {
			t.Errorf("%q: got Critical, want Droppable", ty)
		}
	}
}

func TestDecodeDatagramRejectsWrongType(t *testing.T) {
	body, err := EncodeDatagram(&Envelope{Type: TypeHeartbeat})
	if err != nil {
		t.Fatalf("EncodeDatagram: %v", err)
	}
	if _, err := DecodeDatagram(body); err == nil {
		t.Error("expected error decoding non-PlayerInput datagram")
	}
}

func TestEncodeDecodeDatagramRoundTrip(t *testing.T) {
	env := &Envelope{Type: TypePlayerInput, SessionID: "s1", Throttle: 0.5, Steering: -0.25}
	body, err := EncodeDatagram(env)
	if err != nil {
		t.Fatalf("EncodeDatagram: %v", err)
	}
	got, err := DecodeDatagram(body)
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}
	if got.SessionID != env.SessionID || got.Throttle != env.Throttle {
		t.Errorf("got %+v, want %+v", got, env)
	}
}
