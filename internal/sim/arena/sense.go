package arena

import (
	"math"
	"sort"

	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
	"github.com/harp-lab/maze-game/internal/sim/visibility"
)

// tileOf returns the tile under (x,y), clamped into the arena.
func (m *Match) tileOf(x, y float64) (int, int) {
	tx := min(max(int(math.Floor(x)), 0), m.cfg.Width-1)
	ty := min(max(int(math.Floor(y)), 0), m.cfg.Height-1)
	return tx, ty
}

// observe builds the observation block for a and returns it with the ids of
// the walls it reports. Walls are reported when they own part of the
// occlusion mask and lie within the sense radius; discs when they reach into
// the sense radius and are not hidden behind a nearer wall.
func (m *Match) observe(a *Agent) ([]byte, []int) {
	tx, ty := m.tileOf(a.X, a.Y)
	walls := m.walls.within(tx, ty, m.cfg.WallRadius)
	segs := make([]geom.Segment, len(walls))
	for i, w := range walls {
		segs[i] = w.Seg()
	}
	mask := visibility.Compute(a.X, a.Y, segs)
	r := m.cfg.SenseRadius

	out := protocol.NewObservation(a.X, a.Y, a.CoinsHeld)
	reported := make(map[int]bool)
	var seenIDs []int
	for _, i := range mask.Owners() {
		w := walls[i]
		if !w.WithinRange(a.X, a.Y, r) {
			continue
		}
		reported[i] = true
		seenIDs = append(seenIDs, w.ID())
		if tw, ok := w.(*TempWall); ok {
			out.TempWall(tw.Segment, tw.TicksLeft)
		} else {
			out.Wall(segs[i])
		}
	}

	seen := func(c geom.Circle) bool {
		return c.WithinRange(a.X, a.Y, r) && !mask.Blocks(c.X, c.Y)
	}
	for _, f := range m.flags {
		if !f.Carried() && seen(f.Circle) {
			out.Flag(f.Side, f.X, f.Y)
		}
	}
	for _, c := range m.coins {
		if c.Visible() && seen(c.Circle) {
			out.Coin(c.X, c.Y)
		}
	}
	for _, o := range m.agents {
		if o != a && seen(o.Circle) {
			out.Opponent(o.X, o.Y)
		}
	}

	if m.cfg.LineAngles {
		for _, iv := range mask.Intervals() {
			if reported[iv.Seg] {
				out.LineAngle(segs[iv.Seg], iv.Min, iv.Max)
			}
		}
	}
	sort.Ints(seenIDs)
	return out.Bytes(), seenIDs
}
