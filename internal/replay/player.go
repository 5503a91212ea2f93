package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readHeader reads only the length-prefixed header from r, leaving the
// read offset positioned at the first frame.
func readHeader(r io.Reader) (Header, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Header{}, fmt.Errorf("replay: read header length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, fmt.Errorf("replay: read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(body, &header); err != nil {
		return Header{}, fmt.Errorf("replay: decode header: %w", err)
	}
	return header, nil
}

// ListedReplay is one entry returned by ListReplays.
type ListedReplay struct {
	Path   string
	Header Header
}

// ListReplays enumerates every *.replay file under dir by reading only its
// header, never scanning frame bodies.
func ListReplays(dir string) ([]ListedReplay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay: read dir: %w", err)
	}

	var out []ListedReplay
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".replay" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		header, err := readHeader(f)
		f.Close()
		if err != nil {
			continue
		}
		out = append(out, ListedReplay{Path: path, Header: header})
	}
	return out, nil
}

// Player replays a single file's frames in order, with random access by
// frame index.
type Player struct {
	file       *os.File
	Header     Header
	frameCount uint32
	firstFrame int64
	pos        uint32
}

// LoadReplay opens path, reads its header, and returns a Player positioned
// before the first frame.
func LoadReplay(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	header, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	frameCount, err := parseFrameCount(header.FrameCount)
	if err != nil {
		f.Close()
		return nil, err
	}
	firstFrame, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: locate first frame: %w", err)
	}
	return &Player{file: f, Header: header, frameCount: frameCount, firstFrame: firstFrame}, nil
}

// FrameCount returns the number of frames this replay contains.
func (p *Player) FrameCount() uint32 { return p.frameCount }

// Next reads and returns the next frame's raw JSON body, or io.EOF once
// every frame has been consumed.
func (p *Player) Next() (json.RawMessage, error) {
	if p.pos >= p.frameCount {
		return nil, io.EOF
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(p.file, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("replay: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(p.file, body); err != nil {
		return nil, fmt.Errorf("replay: read frame: %w", err)
	}
	p.pos++
	return json.RawMessage(body), nil
}

// Reset rewinds playback to the first frame.
func (p *Player) Reset() error {
	if _, err := p.file.Seek(p.firstFrame, io.SeekStart); err != nil {
		return fmt.Errorf("replay: reset: %w", err)
	}
	p.pos = 0
	return nil
}

// Seek positions playback so the next call to Next returns frame index n
// (0-based). Replay files have no per-frame index, so seeking forward of the current
// position is a linear scan; seeking backward resets first.
func (p *Player) Seek(n uint32) error {
	if n > p.frameCount {
		return fmt.Errorf("replay: seek %d exceeds frame_count %d", n, p.frameCount)
	}
	if n < p.pos {
		if err := p.Reset(); err != nil {
			return err
		}
	}
	for p.pos < n {
		if _, err := p.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying file handle.
func (p *Player) Close() error {
	return p.file.Close()
}
