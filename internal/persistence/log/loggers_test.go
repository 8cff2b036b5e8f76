package log

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/sim/geom"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
)

func TestFrameLog_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := FrameHeader{
		Version:    FrameLogVersion,
		MatchID:    "m1",
		Width:      11,
		Height:     11,
		TickRateHz: 18,
		Seed:       3,
		Agents:     []string{"green", "red"},
		Walls:      []geom.Segment{geom.Seg(0, 0, 1, 0), geom.Seg(2, 0, 2, 1)},
		Tuning:     tuning.Defaults(),
	}
	fl := NewFrameLog(dir, h)
	if got, want := fl.Path(), filepath.Join(dir, "frames-m1.jsonl.zst"); got != want {
		t.Fatalf("path: got %s want %s", got, want)
	}

	var want []arena.Frame
	for i := 0; i < 5; i++ {
		f := arena.Frame{
			Tick: uint64(i),
			Entities: []arena.EntityState{
				{Kind: "coin", ID: 50, X0: 2.5, Y0: float64(i) + 0.5, R: 0.42, Phase: i},
				{Kind: "twall", ID: 60, X0: 1, Y0: 0, X1: 1, Y1: 1, Side: "green", TicksLeft: 10 - i},
			},
			Agents: []arena.AgentState{{Side: "green", Name: "g", X: 0.5, Y: 0.5, Log: []string{"toward 1 1", ""}}},
		}
		want = append(want, f)
		if err := fl.WriteFrame(f); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenFrameLog(fl.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	if !reflect.DeepEqual(r.Header(), h) {
		t.Fatalf("header: got %+v want %+v", r.Header(), h)
	}
	for i := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want[i]) {
			t.Fatalf("frame %d: got %+v want %+v", i, got, want[i])
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFrameLog_EmptyMatchStillHasHeader(t *testing.T) {
	dir := t.TempDir()
	fl := NewFrameLog(dir, FrameHeader{Version: FrameLogVersion, MatchID: "empty"})
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	r, err := OpenFrameLog(fl.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	if r.Header().MatchID != "empty" {
		t.Fatalf("unexpected header %+v", r.Header())
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOpenFrameLog_Rejects(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenFrameLog(filepath.Join(dir, "missing.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}

	fl := NewFrameLog(dir, FrameHeader{Version: 99, MatchID: "future"})
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := OpenFrameLog(fl.Path()); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir, "m2")
	entries := []arena.TickLogEntry{
		{Tick: 0, Digest: "aa", Commands: []arena.AppliedCommand{{Side: "green", Line: "toward 1 1"}}},
		{Tick: 1, Digest: "bb"},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := ReadTicks(TicksPath(dir, "m2"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("got %+v want %+v", got, entries)
	}
}
