// Package replay records and plays back a session's telemetry stream to
// disk. Grounded on the reference server's ChannelRecorder (server/
// recording.go) — same start/feed/stop lifecycle and a background
// max-duration timer — but the wire format is this project's own rather
// than OGG/Opus, since a replay frame is a JSON telemetry envelope, not an
// audio packet.
//
// File format: [u32 header_len][header][ [u32 frame_len][frame] ]*, where
// header_len/frame_len are big-endian and header/frame are JSON. frame_count
// is encoded as a fixed-width zero-padded decimal string so Stop can rewrite
// it in place without perturbing the header's length.
package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const maxRecordingDuration = 2 * time.Hour

// frameCountWidth is wide enough for any uint32 frame count (at most
// 4294967295, ten digits).
const frameCountWidth = 10

// Metadata describes the recorded session, per spec.md §6's replay header.
type Metadata struct {
	Session       string   `json:"session"`
	Track         string   `json:"track"`
	RecordedAt    int64    `json:"recorded_at"`
	DurationTicks uint32   `json:"duration_ticks"`
	TickRate      int      `json:"tick_rate"`
	Participants  []string `json:"participants"`
}

// Header is the self-describing block at the start of a replay file.
type Header struct {
	Version    int      `json:"version"`
	Metadata   Metadata `json:"metadata"`
	FrameCount string   `json:"frame_count"`
}

// Recorder captures one session's telemetry frames to disk.
type Recorder struct {
	mu            sync.Mutex
	file          *os.File
	path          string
	frameCountOff int64
	frameCountLen int64
	frames        uint32
	stopped       bool
	maxTimer      *time.Timer
}

// StartRecording begins recording to a new file under dir, writing a
// placeholder header immediately so list_replays can see an in-progress
// recording. stopFn, if non-nil, runs if maxRecordingDuration elapses
// without an explicit Stop.
func StartRecording(dir, sessionID string, meta Metadata, stopFn func()) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("replay: create dir: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("%s_%s.replay", sessionID, now.Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: create file: %w", err)
	}

	header := Header{Version: 1, Metadata: meta, FrameCount: padFrameCount(0)}
	headerBody, err := json.Marshal(header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: marshal header: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerBody)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: write header length: %w", err)
	}
	if _, err := f.Write(headerBody); err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: write header: %w", err)
	}

	frameCountOff, frameCountLen := findFrameCountField(headerBody)
	if frameCountLen == 0 {
		f.Close()
		return nil, fmt.Errorf("replay: could not locate frame_count field in header")
	}

	r := &Recorder{
		file:          f,
		path:          path,
		frameCountOff: 4 + int64(frameCountOff),
		frameCountLen: int64(frameCountLen),
	}
	r.maxTimer = time.AfterFunc(maxRecordingDuration, func() {
		r.Stop()
		if stopFn != nil {
			stopFn()
		}
	})
	return r, nil
}

// findFrameCountField locates the padded digit run written for
// "frame_count":"..." within the marshaled header, by searching for the
// literal key and walking past the opening quote.
func findFrameCountField(body []byte) (offset, length int) {
	key := []byte(`"frame_count":"`)
	idx := indexBytes(body, key)
	if idx < 0 {
		return 0, 0
	}
	start := idx + len(key)
	return start, frameCountWidth
}

func indexBytes(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}

func padFrameCount(n uint32) string {
	return fmt.Sprintf("%0*d", frameCountWidth, n)
}

// RecordFrame appends one telemetry frame.
func (r *Recorder) RecordFrame(frame any) error {
	body, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("replay: marshal frame: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := r.file.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("replay: write frame length: %w", err)
	}
	if _, err := r.file.Write(body); err != nil {
		return fmt.Errorf("replay: write frame: %w", err)
	}
	r.frames++
	return nil
}

// Stop finalizes the recording: it rewrites the frame_count digits in
// place and closes the file. Safe to call multiple times.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	r.stopped = true
	if r.maxTimer != nil {
		r.maxTimer.Stop()
	}

	if _, err := r.file.Seek(r.frameCountOff, io.SeekStart); err != nil {
		r.file.Close()
		return fmt.Errorf("replay: seek to rewrite frame_count: %w", err)
	}
	if _, err := r.file.Write([]byte(padFrameCount(r.frames))); err != nil {
		r.file.Close()
		return fmt.Errorf("replay: rewrite frame_count: %w", err)
	}
	return r.file.Close()
}

// FramesRecorded returns the number of frames written so far.
func (r *Recorder) FramesRecorded() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Path returns the file path this recorder is writing to.
func (r *Recorder) Path() string {
	return r.path
}

// parseFrameCount converts the zero-padded decimal string back to a count.
func parseFrameCount(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("replay: parse frame_count %q: %w", s, err)
	}
	return uint32(n), nil
}
