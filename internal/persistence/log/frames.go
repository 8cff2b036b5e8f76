package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/sim/geom"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
)

const FrameLogVersion = 1

// FrameHeader is the first line of a frame log. Static walls are stored once
// here rather than in every frame; the tuning is kept so the match can be
// re-simulated.
type FrameHeader struct {
	Version    int            `json:"version"`
	MatchID    string         `json:"match_id"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	TickRateHz int            `json:"tick_rate_hz"`
	Seed       int64          `json:"seed"`
	Agents     []string       `json:"agents"`
	Walls      []geom.Segment `json:"walls"`
	Tuning     tuning.Tuning  `json:"tuning"`
}

// FrameReader reads a log written by FrameLog.
type FrameReader struct {
	f      *os.File
	dec    *zstd.Decoder
	sc     *bufio.Scanner
	header FrameHeader
}

func OpenFrameLog(path string) (*FrameReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r := &FrameReader{f: f, dec: dec, sc: bufio.NewScanner(dec)}
	r.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !r.sc.Scan() {
		err := r.sc.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		r.Close()
		return nil, fmt.Errorf("%s: header: %w", path, err)
	}
	if err := json.Unmarshal(r.sc.Bytes(), &r.header); err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: header: %w", path, err)
	}
	if r.header.Version != FrameLogVersion {
		r.Close()
		return nil, fmt.Errorf("%s: unsupported frame log version %d", path, r.header.Version)
	}
	return r, nil
}

func (r *FrameReader) Header() FrameHeader { return r.header }

// Next returns the next frame, or io.EOF after the last one.
func (r *FrameReader) Next() (arena.Frame, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return arena.Frame{}, err
		}
		return arena.Frame{}, io.EOF
	}
	var f arena.Frame
	if err := json.Unmarshal(r.sc.Bytes(), &f); err != nil {
		return arena.Frame{}, err
	}
	return f, nil
}

func (r *FrameReader) Close() error {
	r.dec.Close()
	return r.f.Close()
}

// ReadTicks decodes a whole tick log.
func ReadTicks(path string) ([]arena.TickLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []arena.TickLogEntry
	jd := json.NewDecoder(dec)
	for {
		var e arena.TickLogEntry
		if err := jd.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%s: entry %d: %w", path, len(out), err)
		}
		out = append(out, e)
	}
}
