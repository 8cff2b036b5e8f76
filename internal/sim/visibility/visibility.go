// Package visibility computes, for an observer, the angular spans occluded by
// the nearest wall in each direction.
//
// Each segment contributes an interval of screen angles (see geom). Intervals
// are committed nearest-first (by midpoint distance); committing an interval
// cuts its overlap out of every farther pending interval and re-queues the
// remainders. The committed set is the occlusion mask for that observer.
package visibility

import (
	"math"
	"sort"

	"github.com/harp-lab/maze-game/internal/sim/geom"
)

// Interval is an angular span [Min, Max] blocked by segment Seg (an index into
// the slice given to Compute). Intervals never wrap: Min <= Max.
type Interval struct {
	Min, Max float64
	Seg      int
}

func (iv Interval) mean() float64 { return (iv.Min + iv.Max) / 2 }

// Covers reports whether angle a lies inside the interval, bounds included.
func (iv Interval) Covers(a float64) bool { return iv.Min <= a && a <= iv.Max }

// Mask is the committed occlusion set for one observer position.
type Mask struct {
	X, Y      float64
	segs      []geom.Segment
	committed []Interval
}

// Compute builds the occlusion mask for an observer at (x,y).
func Compute(x, y float64, segs []geom.Segment) *Mask {
	dist := make([]float64, len(segs))
	pending := make([]Interval, 0, len(segs)+4)
	for i, s := range segs {
		mx, my := s.Midpoint()
		dist[i] = geom.Dist(x, y, mx, my)

		lo, hi := s.MinAngleTo(x, y), s.MaxAngleTo(x, y)
		switch {
		case lo > hi:
			pending = append(pending,
				Interval{Min: lo, Max: math.Pi, Seg: i},
				Interval{Min: -math.Pi, Max: hi, Seg: i})
		case lo < hi:
			pending = append(pending, Interval{Min: lo, Max: hi, Seg: i})
		}
	}

	less := func(a, b Interval) bool {
		if da, db := dist[a.Seg], dist[b.Seg]; da != db {
			return da < db
		}
		if ma, mb := a.mean(), b.mean(); ma != mb {
			return ma < mb
		}
		if a.Seg != b.Seg {
			return segLess(segs[a.Seg], segs[b.Seg])
		}
		return a.Min < b.Min
	}

	m := &Mask{X: x, Y: y, segs: segs}
	for len(pending) > 0 {
		best := 0
		for i := 1; i < len(pending); i++ {
			if less(pending[i], pending[best]) {
				best = i
			}
		}
		cur := pending[best]
		m.committed = append(m.committed, cur)

		next := make([]Interval, 0, len(pending))
		for i, p := range pending {
			if i == best {
				continue
			}
			if p.Seg == cur.Seg || !(cur.Max-p.Min > 0 && p.Max-cur.Min > 0) {
				next = append(next, p)
				continue
			}
			lo, hi := math.Max(cur.Min, p.Min), math.Min(cur.Max, p.Max)
			if p.Min < lo {
				next = append(next, Interval{Min: p.Min, Max: lo, Seg: p.Seg})
			}
			if p.Max > hi {
				next = append(next, Interval{Min: hi, Max: p.Max, Seg: p.Seg})
			}
		}
		pending = next
	}
	return m
}

// segLess orders segments by coordinates so ties never depend on input order.
func segLess(a, b geom.Segment) bool {
	switch {
	case a.X0 != b.X0:
		return a.X0 < b.X0
	case a.Y0 != b.Y0:
		return a.Y0 < b.Y0
	case a.X1 != b.X1:
		return a.X1 < b.X1
	default:
		return a.Y1 < b.Y1
	}
}

// Intervals returns the committed intervals ordered by segment index, then
// minimum angle.
func (m *Mask) Intervals() []Interval {
	out := append([]Interval(nil), m.committed...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seg != out[j].Seg {
			return out[i].Seg < out[j].Seg
		}
		return out[i].Min < out[j].Min
	})
	return out
}

// Owners returns, ascending, the indices of segments that own at least one
// committed interval: the walls the observer actually sees.
func (m *Mask) Owners() []int {
	seen := make(map[int]struct{}, len(m.committed))
	out := make([]int, 0, len(m.committed))
	for _, iv := range m.committed {
		if _, ok := seen[iv.Seg]; ok {
			continue
		}
		seen[iv.Seg] = struct{}{}
		out = append(out, iv.Seg)
	}
	sort.Ints(out)
	return out
}

// Segment returns the segment behind index i.
func (m *Mask) Segment(i int) geom.Segment { return m.segs[i] }

// Blocks reports whether the view toward (px,py) is occluded: some committed
// interval covers its angle and that interval's wall is hit before the point.
func (m *Mask) Blocks(px, py float64) bool {
	a := geom.Angle(m.X, m.Y, px, py)
	d := geom.Dist(m.X, m.Y, px, py)
	for _, iv := range m.committed {
		if !iv.Covers(a) {
			continue
		}
		if hit, ok := m.segs[iv.Seg].RayHit(m.X, m.Y, a); ok && hit < d {
			return true
		}
	}
	return false
}
