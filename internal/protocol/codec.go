package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameBytes caps a single reliable-stream record. Larger frames are
// rejected and terminate the connection rather than being buffered.
const MaxFrameBytes = 1 << 20 // 1 MiB

// MaxDatagramBytes caps a single UDP PlayerInput payload.
const MaxDatagramBytes = 2048

var ErrFrameTooLarge = errors.New("protocol: frame exceeds MaxFrameBytes")

// WriteFrame writes a length-prefixed JSON-encoded envelope: a 4-byte
// big-endian length followed by the body. Adding a field to Envelope never
// breaks older readers since json.Unmarshal ignores unknown fields and
// omitempty keeps absent ones out of the wire entirely.
func WriteFrame(w io.Writer, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("protocol: marshal envelope: %w", err)
	}
	if len(body) > MaxFrameBytes {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("protocol: write body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed envelope from r. It returns
// ErrFrameTooLarge without consuming the body when the advertised length
// exceeds MaxFrameBytes, so the caller can close the connection instead of
// reading an unbounded amount of attacker-controlled data.
func ReadFrame(r io.Reader) (*Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("protocol: read body: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return &env, nil
}

// EncodeDatagram serializes a PlayerInput envelope for transmission over
// UDP. There is no framing on this channel: one message per packet.
func EncodeDatagram(env *Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal datagram: %w", err)
	}
	if len(body) > MaxDatagramBytes {
		return nil, fmt.Errorf("protocol: datagram exceeds %d bytes", MaxDatagramBytes)
	}
	return body, nil
}

// DecodeDatagram parses a single received UDP packet. Any type other than
// PlayerInput is rejected; callers count this toward the udp_wrong_kind
// metric.
func DecodeDatagram(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode datagram: %w", err)
	}
	if env.Type != TypePlayerInput {
		return nil, fmt.Errorf("protocol: unexpected datagram type %q", env.Type)
	}
	return &env, nil
}
