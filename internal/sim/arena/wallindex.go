package arena

import (
	"math"
	"sort"

	"github.com/harp-lab/maze-game/internal/sim/geom"
)

type tile struct{ x, y int }

// wallIndex buckets walls by the tiles they border or cross. A wall lives in
// every such tile; bucket order is insertion order.
type wallIndex struct {
	w, h  int
	tiles map[tile][]wallEntity
	byKey map[geom.Segment]wallEntity
}

func newWallIndex(w, h int) *wallIndex {
	return &wallIndex{
		w:     w,
		h:     h,
		tiles: make(map[tile][]wallEntity),
		byKey: make(map[geom.Segment]wallEntity),
	}
}

// key orders endpoints so both orientations of a wall map to one entry.
func key(s geom.Segment) geom.Segment {
	if s.X1 < s.X0 || (s.X1 == s.X0 && s.Y1 < s.Y0) {
		return geom.Seg(s.X1, s.Y1, s.X0, s.Y0)
	}
	return s
}

// has reports whether a wall joining the same endpoints is indexed.
func (ix *wallIndex) has(s geom.Segment) bool {
	_, ok := ix.byKey[key(s)]
	return ok
}

// insert adds e to every tile it touches along a positive length. It returns
// false, leaving the index unchanged, for a duplicate or a wall that touches no
// in-bounds tile.
func (ix *wallIndex) insert(e wallEntity) bool {
	s := e.Seg()
	k := key(s)
	if _, dup := ix.byKey[k]; dup {
		return false
	}
	ts := ix.tilesOf(s)
	if len(ts) == 0 {
		return false
	}
	ix.byKey[k] = e
	for _, t := range ts {
		ix.tiles[t] = append(ix.tiles[t], e)
	}
	return true
}

func (ix *wallIndex) remove(e wallEntity) {
	s := e.Seg()
	k := key(s)
	if ix.byKey[k] != e {
		return
	}
	delete(ix.byKey, k)
	for _, t := range ix.tilesOf(s) {
		b := ix.tiles[t]
		for i, x := range b {
			if x == e {
				ix.tiles[t] = append(b[:i:i], b[i+1:]...)
				break
			}
		}
		if len(ix.tiles[t]) == 0 {
			delete(ix.tiles, t)
		}
	}
}

func (ix *wallIndex) at(tx, ty int) []wallEntity { return ix.tiles[tile{tx, ty}] }

// near returns the walls of tile (tx,ty) and its four neighbours, each once,
// in insertion order.
func (ix *wallIndex) near(tx, ty int) []wallEntity {
	return ix.collect([]tile{{tx, ty}, {tx - 1, ty}, {tx + 1, ty}, {tx, ty - 1}, {tx, ty + 1}})
}

// within returns the walls of every tile at Manhattan distance <= r from
// (tx,ty), each once, in insertion order.
func (ix *wallIndex) within(tx, ty, r int) []wallEntity {
	var ts []tile
	for dx := -r; dx <= r; dx++ {
		span := r - abs(dx)
		for dy := -span; dy <= span; dy++ {
			ts = append(ts, tile{tx + dx, ty + dy})
		}
	}
	return ix.collect(ts)
}

func (ix *wallIndex) collect(ts []tile) []wallEntity {
	seen := make(map[wallEntity]struct{})
	var out []wallEntity
	for _, t := range ts {
		for _, e := range ix.tiles[t] {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// tilesOf lists the in-bounds tiles whose closed square shares a positive
// length of s. Touching a corner does not count.
func (ix *wallIndex) tilesOf(s geom.Segment) []tile {
	x0 := int(math.Floor(math.Min(s.X0, s.X1))) - 1
	x1 := int(math.Floor(math.Max(s.X0, s.X1)))
	y0 := int(math.Floor(math.Min(s.Y0, s.Y1))) - 1
	y1 := int(math.Floor(math.Max(s.Y0, s.Y1)))
	var out []tile
	for tx := max(x0, 0); tx <= min(x1, ix.w-1); tx++ {
		for ty := max(y0, 0); ty <= min(y1, ix.h-1); ty++ {
			fx, fy := float64(tx), float64(ty)
			if clipLen(s, fx, fy, fx+1, fy+1) > 1e-9 {
				out = append(out, tile{tx, ty})
			}
		}
	}
	return out
}

// clipLen is the length of s inside the closed box [x0,x1]x[y0,y1]
// (Liang-Barsky).
func clipLen(s geom.Segment, x0, y0, x1, y1 float64) float64 {
	dx, dy := s.X1-s.X0, s.Y1-s.Y0
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{s.X0 - x0, x1 - s.X0, s.Y0 - y0, y1 - s.Y0}
	t0, t1 := 0.0, 1.0
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0
			}
			continue
		}
		r := q[i] / p[i]
		if p[i] < 0 {
			if r > t1 {
				return 0
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return 0
			}
			t1 = math.Min(t1, r)
		}
	}
	if t1 <= t0 {
		return 0
	}
	return (t1 - t0) * math.Hypot(dx, dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
