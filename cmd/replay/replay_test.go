package main

import (
	"math/rand"
	"strings"
	"testing"

	persistlog "github.com/harp-lab/maze-game/internal/persistence/log"
	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/sim/maze"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
)

type frameLogSink struct{ l *persistlog.FrameLog }

func (s frameLogSink) Push(f arena.Frame) error { return s.l.WriteFrame(f) }

// record plays a short scripted match and returns the directory holding its
// frame and tick logs.
func record(t *testing.T, ticks int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	tune := tuning.Defaults()
	tune.Arena.Width, tune.Arena.Height = 5, 5
	tune.Seed = 9
	cfg := arena.NewConfig(tune)
	cfg.FrameBudget, cfg.BootGrace = 0, 0

	mz := maze.Generate(5, 5, rand.New(rand.NewSource(3)))
	green := &scripted{byTick: map[uint64][]string{
		0:  {"himynameis g", "toward 2.5 0.5"},
		12: {"comment turning", "toward 0.5 3.5"},
	}}
	red := &scripted{byTick: map[uint64][]string{
		1: {"toward 4.5 0.5"},
		7: {"block 4 4 u", "toward 2.5 4.5"},
	}}
	m, err := arena.New(cfg, mz.All(), []arena.Controller{green, red}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fl := persistlog.NewFrameLog(dir, persistlog.FrameHeader{
		Version: persistlog.FrameLogVersion,
		MatchID: "rec",
		Width:   5,
		Height:  5,
		Seed:    cfg.Seed,
		Agents:  []string{"green", "red"},
		Walls:   m.StaticWalls(),
		Tuning:  tune,
	})
	tl := persistlog.NewTickLogger(dir, "rec")
	m.SetFrameSink(frameLogSink{fl})
	m.SetTickLogger(tl)
	for i := 0; i < ticks; i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("close frames: %v", err)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close ticks: %v", err)
	}
	return fl.Path(), persistlog.TicksPath(dir, "rec")
}

func open(t *testing.T, framesPath, ticksPath string) (*persistlog.FrameReader, []arena.TickLogEntry) {
	t.Helper()
	fr, err := persistlog.OpenFrameLog(framesPath)
	if err != nil {
		t.Fatalf("open frames: %v", err)
	}
	t.Cleanup(func() { _ = fr.Close() })
	ticks, err := persistlog.ReadTicks(ticksPath)
	if err != nil {
		t.Fatalf("read ticks: %v", err)
	}
	return fr, ticks
}

func TestVerify_ReproducesRecording(t *testing.T) {
	fp, tp := record(t, 40)
	fr, ticks := open(t, fp, tp)
	if len(ticks) != 40 {
		t.Fatalf("ticks=%d", len(ticks))
	}
	checked, err := verify(fr.Header(), ticks, fr, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if checked != 40 {
		t.Fatalf("checked=%d want=40", checked)
	}
}

func TestVerify_StopsAtToTick(t *testing.T) {
	fp, tp := record(t, 20)
	fr, ticks := open(t, fp, tp)
	checked, err := verify(fr.Header(), ticks, nil, 9)
	if err != nil || checked != 10 {
		t.Fatalf("checked=%d err=%v", checked, err)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	fp, tp := record(t, 20)
	fr, ticks := open(t, fp, tp)
	ticks[5].Digest = "00"
	_, err := verify(fr.Header(), ticks, nil, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 5") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}

	// A changed command changes the simulation from that tick on.
	fr, ticks = open(t, fp, tp)
	ticks[0].Commands[1].Line = "toward 0.5 2.5"
	if _, err := verify(fr.Header(), ticks, nil, 0); err == nil {
		t.Fatalf("expected mismatch after editing a command")
	}
}

func TestSummarize(t *testing.T) {
	fp, tp := record(t, 15)
	fr, _ := open(t, fp, tp)
	n, last, err := summarize(fr)
	if err != nil || n != 15 || last.Tick != 14 {
		t.Fatalf("n=%d last=%d err=%v", n, last.Tick, err)
	}
	if last.Agents[0].Name != "g" {
		t.Fatalf("name not recorded: %+v", last.Agents[0])
	}
}
