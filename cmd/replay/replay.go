package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	persistlog "github.com/harp-lab/maze-game/internal/persistence/log"
	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/arena"
)

// scripted feeds an agent the lines it consumed in each recorded tick.
// Observe marks the start of a tick.
type scripted struct {
	byTick map[uint64][]string
	tick   uint64
	begun  bool
	queue  []string
}

func (s *scripted) Observe([]byte) {
	if s.begun {
		s.tick++
	}
	s.begun = true
	s.queue = append(s.queue[:0], s.byTick[s.tick]...)
}

func (s *scripted) NextCommand() (string, bool) {
	if len(s.queue) == 0 {
		return "", false
	}
	l := s.queue[0]
	s.queue = s.queue[1:]
	return l, true
}

// checker compares every re-simulated tick and frame with the recording.
type checker struct {
	ticks  []arena.TickLogEntry
	frames *persistlog.FrameReader

	next    int
	checked int
	err     error
}

func (c *checker) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *checker) WriteTick(e arena.TickLogEntry) error {
	if c.next >= len(c.ticks) {
		c.fail(fmt.Errorf("tick %d not in the tick log", e.Tick))
		return c.err
	}
	want := c.ticks[c.next]
	c.next++
	switch {
	case want.Tick != e.Tick:
		c.fail(fmt.Errorf("tick mismatch: want=%d got=%d", want.Tick, e.Tick))
	case want.Digest != e.Digest:
		c.fail(fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, e.Digest, want.Digest))
	default:
		c.checked++
	}
	return c.err
}

func (c *checker) Push(f arena.Frame) error {
	if c.frames == nil {
		return nil
	}
	rec, err := c.frames.Next()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		c.fail(fmt.Errorf("frame %d: %w", f.Tick, err))
		return nil
	}
	// Compared through JSON so the recorded and live frames share one form.
	a, _ := json.Marshal(rec)
	b, _ := json.Marshal(f)
	if !bytes.Equal(a, b) {
		c.fail(fmt.Errorf("frame mismatch at tick %d", f.Tick))
	}
	return nil
}

// verify re-simulates a recorded match from its header and tick log and
// reports how many ticks matched.
func verify(h persistlog.FrameHeader, ticks []arena.TickLogEntry, frames *persistlog.FrameReader, toTick uint64) (int, error) {
	if len(h.Agents) < 1 || len(h.Agents) > 2 {
		return 0, fmt.Errorf("header lists %d agents", len(h.Agents))
	}
	script := map[protocol.Side]*scripted{}
	ctls := make([]arena.Controller, 0, len(h.Agents))
	for _, name := range h.Agents {
		s := &scripted{byTick: map[uint64][]string{}}
		script[protocol.Side(name)] = s
		ctls = append(ctls, s)
	}
	for _, e := range ticks {
		for _, c := range e.Commands {
			s, ok := script[c.Side]
			if !ok {
				return 0, fmt.Errorf("tick %d: command for unknown side %q", e.Tick, c.Side)
			}
			s.byTick[e.Tick] = append(s.byTick[e.Tick], c.Line)
		}
	}

	cfg := arena.NewConfig(h.Tuning)
	cfg.Seed = h.Seed
	cfg.FrameBudget, cfg.BootGrace = 0, 0
	m, err := arena.New(cfg, h.Walls, ctls, nil)
	if err != nil {
		return 0, err
	}
	c := &checker{ticks: ticks, frames: frames}
	m.SetTickLogger(c)
	m.SetFrameSink(c)

	for i := range ticks {
		if toTick != 0 && ticks[i].Tick > toTick {
			break
		}
		if err := m.Step(); err != nil {
			return c.checked, fmt.Errorf("tick %d: %w", m.CurrentTick(), err)
		}
		if c.err != nil {
			return c.checked, c.err
		}
	}
	return c.checked, nil
}
