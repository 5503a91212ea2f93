package replay

import (
	"encoding/json"
	"io"
	"testing"
)

type testFrame struct {
	Tick int `json:"tick"`
}

func TestRecordAndReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec, err := StartRecording(dir, "session-1", Metadata{Session: "session-1", Track: "oval", TickRate: 240}, nil)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := rec.RecordFrame(testFrame{Tick: i}); err != nil {
			t.Fatalf("RecordFrame: %v", err)
		}
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	player, err := LoadReplay(rec.Path())
	if err != nil {
		t.Fatalf("LoadReplay: %v", err)
	}
	defer player.Close()

	if player.FrameCount() != 5 {
		t.Fatalf("got frame_count %d, want 5", player.FrameCount())
	}

	var got []testFrame
	for {
		raw, err := player.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		var f testFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		got = append(got, f)
	}
	if len(got) != 5 {
		t.Fatalf("got %d frames, want 5", len(got))
	}
	for i, f := range got {
		if f.Tick != i {
			t.Errorf("frame %d: got tick %d, want %d", i, f.Tick, i)
		}
	}
}

func TestSeekRewindsAndAdvances(t *testing.T) {
	dir := t.TempDir()
	rec, _ := StartRecording(dir, "session-2", Metadata{Session: "session-2"}, nil)
	for i := 0; i < 3; i++ {
		rec.RecordFrame(testFrame{Tick: i})
	}
	rec.Stop()

	player, err := LoadReplay(rec.Path())
	if err != nil {
		t.Fatalf("LoadReplay: %v", err)
	}
	defer player.Close()

	if err := player.Seek(2); err != nil {
		t.Fatalf("Seek(2): %v", err)
	}
	raw, err := player.Next()
	if err != nil {
		t.Fatalf("Next after seek: %v", err)
	}
	var f testFrame
	json.Unmarshal(raw, &f)
	if f.Tick != 2 {
		t.Fatalf("got tick %d, want 2", f.Tick)
	}

	if err := player.Seek(0); err != nil {
		t.Fatalf("Seek(0): %v", err)
	}
	raw, _ = player.Next()
	json.Unmarshal(raw, &f)
	if f.Tick != 0 {
		t.Fatalf("got tick %d after rewind, want 0", f.Tick)
	}
}

func TestListReplaysReadsOnlyHeaders(t *testing.T) {
	dir := t.TempDir()
	rec, _ := StartRecording(dir, "session-3", Metadata{Session: "session-3", Track: "oval"}, nil)
	rec.RecordFrame(testFrame{Tick: 0})
	rec.Stop()

	listed, err := ListReplays(dir)
	if err != nil {
		t.Fatalf("ListReplays: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("got %d replays, want 1", len(listed))
	}
	if listed[0].Header.Metadata.Session != "session-3" {
		t.Errorf("got session %q, want session-3", listed[0].Header.Metadata.Session)
	}
	if listed[0].Header.FrameCount != padFrameCount(1) {
		t.Errorf("got frame_count %q, want %q", listed[0].Header.FrameCount, padFrameCount(1))
	}
}
