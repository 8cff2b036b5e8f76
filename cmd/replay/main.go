package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	persistlog "github.com/harp-lab/maze-game/internal/persistence/log"
	"github.com/harp-lab/maze-game/internal/sim/arena"
)

func main() {
	var (
		framesPath = flag.String("frames", "", "path to frames-<match>.jsonl.zst")
		ticksPath  = flag.String("ticks", "", "tick log (default: ticks-<match>.jsonl.zst next to the frames)")
		doVerify   = flag.Bool("verify", true, "re-simulate the match and compare digests and frames")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *framesPath == "" {
		fmt.Fprintln(os.Stderr, "missing -frames")
		os.Exit(2)
	}

	fr, err := persistlog.OpenFrameLog(*framesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open frames:", err)
		os.Exit(1)
	}
	h := fr.Header()
	fmt.Printf("frames v%d match=%s arena=%dx%d tick_rate=%d seed=%d agents=%s walls=%d\n",
		h.Version, h.MatchID, h.Width, h.Height, h.TickRateHz, h.Seed, strings.Join(h.Agents, ","), len(h.Walls))

	if !*doVerify {
		n, last, err := summarize(fr)
		_ = fr.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read frames:", err)
			os.Exit(1)
		}
		fmt.Printf("frames=%d\n", n)
		for _, a := range last.Agents {
			fmt.Printf("  %-5s %-16s flags=%d coins=%d/%d\n", a.Side, a.Name, a.Flags, a.CoinsHeld, a.CoinsTotal)
		}
		return
	}

	tp := *ticksPath
	if tp == "" {
		tp = persistlog.TicksPath(filepath.Dir(*framesPath), h.MatchID)
	}
	ticks, err := persistlog.ReadTicks(tp)
	if err != nil {
		_ = fr.Close()
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}
	checked, err := verify(h, ticks, fr, *toTick)
	_ = fr.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks\n", checked)
}

// summarize walks the frames, checking they are consecutive, and returns the
// count and the last one.
func summarize(fr *persistlog.FrameReader) (int, arena.Frame, error) {
	var last arena.Frame
	n := 0
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return n, last, nil
		}
		if err != nil {
			return n, last, err
		}
		if f.Tick != uint64(n) {
			return n, last, fmt.Errorf("frame %d has tick %d", n, f.Tick)
		}
		last = f
		n++
	}
}
