package arena

import (
	"testing"

	"github.com/harp-lab/maze-game/internal/sim/geom"
	"github.com/harp-lab/maze-game/internal/sim/maze"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
)

// script replays fixed command lines, one batch per tick, and keeps every
// observation it is shown.
type script struct {
	ticks [][]string
	queue []string
	obs   [][]byte
}

func (s *script) Observe(block []byte) {
	s.obs = append(s.obs, block)
	if len(s.ticks) > 0 {
		s.queue = append(s.queue, s.ticks[0]...)
		s.ticks = s.ticks[1:]
	}
}

func (s *script) NextCommand() (string, bool) {
	if len(s.queue) == 0 {
		return "", false
	}
	l := s.queue[0]
	s.queue = s.queue[1:]
	return l, true
}

func testConfig() Config {
	cfg := NewConfig(tuning.Defaults())
	cfg.Coins = 0
	cfg.FrameBudget = 0
	cfg.BootGrace = 0
	return cfg
}

func boundary(w, h int) []geom.Segment {
	m := &maze.Maze{Width: w, Height: h}
	return m.Boundary()
}

func newTestMatch(t *testing.T, cfg Config, walls []geom.Segment, ctls ...Controller) *Match {
	t.Helper()
	m, err := New(cfg, append(walls, boundary(cfg.Width, cfg.Height)...), ctls, nil)
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	return m
}

func stepN(t *testing.T, m *Match, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("step %d: %v", m.CurrentTick(), err)
		}
	}
}

// teleport moves a and parks its target on the new position.
func teleport(a *Agent, x, y float64) {
	a.X, a.Y = x, y
	a.TX, a.TY = x, y
	a.V = 0
}

func placeCoin(t *testing.T, m *Match, x, y float64) *Coin {
	t.Helper()
	c := &Coin{body: body{id: m.nextID(), Circle: geom.Circle{X: x, Y: y, R: m.cfg.CoinRadius}}}
	m.coins = append(m.coins, c)
	if err := m.objs.insert(c); err != nil {
		t.Fatalf("insert coin: %v", err)
	}
	return c
}
