package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/harp-lab/maze-game/internal/sim/arena"
)

// JSONLZstdWriter appends one JSON document per line to a zstd-compressed
// file. The file is created on the first write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines through the encoder without ending the stream.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1, err2 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		err2 = w.f.Close()
		w.f = nil
	}
	w.w = nil
	if err1 != nil {
		return err1
	}
	return err2
}

func FramesPath(dir, matchID string) string {
	return filepath.Join(dir, fmt.Sprintf("frames-%s.jsonl.zst", matchID))
}

func TicksPath(dir, matchID string) string {
	return filepath.Join(dir, fmt.Sprintf("ticks-%s.jsonl.zst", matchID))
}

// FrameLog records a match: a header line, then one frame per line.
type FrameLog struct {
	w      *JSONLZstdWriter
	header FrameHeader
	wrote  bool
}

func NewFrameLog(dir string, h FrameHeader) *FrameLog {
	return &FrameLog{w: NewJSONLZstdWriter(FramesPath(dir, h.MatchID)), header: h}
}

func (l *FrameLog) Path() string { return l.w.Path() }

// WriteFrame implements frames.Sink.
func (l *FrameLog) WriteFrame(f arena.Frame) error {
	if !l.wrote {
		if err := l.w.Write(l.header); err != nil {
			return err
		}
		l.wrote = true
	}
	return l.w.Write(f)
}

// Close writes the header if no frame came through, so the file is always
// readable.
func (l *FrameLog) Close() error {
	if !l.wrote {
		if err := l.w.Write(l.header); err != nil {
			return err
		}
		l.wrote = true
	}
	return l.w.Close()
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dir, matchID string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(TicksPath(dir, matchID))}
}

func (l *TickLogger) WriteTick(e arena.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                         { return l.w.Close() }
