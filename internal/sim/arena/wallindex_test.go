package arena

import (
	"reflect"
	"testing"

	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
)

func TestWallIndex_TilesOf(t *testing.T) {
	ix := newWallIndex(11, 11)
	cases := []struct {
		seg  geom.Segment
		want []tile
	}{
		{geom.Seg(2, 0, 2, 1), []tile{{1, 0}, {2, 0}}},
		{geom.Seg(0, 0, 1, 0), []tile{{0, 0}}},
		{geom.Seg(11, 3, 11, 4), []tile{{10, 3}}},
		{geom.Seg(1, 1, 2, 2), []tile{{1, 1}}},
		{geom.Seg(3, 5, 5, 5), []tile{{3, 4}, {3, 5}, {4, 4}, {4, 5}}},
		{geom.Seg(20, 20, 21, 20), nil},
	}
	for _, tc := range cases {
		if got := ix.tilesOf(tc.seg); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("tilesOf(%v): got %v want %v", tc.seg, got, tc.want)
		}
	}
}

func TestWallIndex_InsertRemove(t *testing.T) {
	ix := newWallIndex(11, 11)
	w := &Wall{id: 1, Segment: geom.Seg(2, 0, 2, 1)}
	if !ix.insert(w) {
		t.Fatalf("insert failed")
	}
	if ix.insert(&Wall{id: 2, Segment: geom.Seg(2, 1, 2, 0)}) {
		t.Fatalf("reversed duplicate must be rejected")
	}
	if ix.insert(&Wall{id: 3, Segment: geom.Seg(20, 20, 21, 20)}) {
		t.Fatalf("wall outside the arena must be rejected")
	}
	if !ix.has(geom.Seg(2, 1, 2, 0)) {
		t.Fatalf("has must ignore orientation")
	}

	tw := &TempWall{Wall: Wall{id: 4, Segment: geom.Seg(1, 0, 1, 1)}, Side: protocol.Green}
	if !ix.insert(tw) {
		t.Fatalf("insert temp wall failed")
	}
	if got := ix.at(1, 0); len(got) != 2 || got[0] != w || got[1] != tw {
		t.Fatalf("tile (1,0): got %v", got)
	}

	ix.remove(tw)
	if ix.has(tw.Segment) || len(ix.at(0, 0)) != 0 {
		t.Fatalf("temp wall still indexed")
	}
	if got := ix.at(1, 0); len(got) != 1 || got[0] != w {
		t.Fatalf("tile (1,0) after remove: got %v", got)
	}

	// Removing a different entity with the same endpoints is a no-op.
	ix.remove(&Wall{id: 5, Segment: w.Segment})
	if !ix.has(w.Segment) {
		t.Fatalf("foreign remove dropped the wall")
	}
}

func TestWallIndex_NearAndWithin(t *testing.T) {
	ix := newWallIndex(11, 11)
	far := &Wall{id: 1, Segment: geom.Seg(9, 9, 10, 9)}
	b := &Wall{id: 2, Segment: geom.Seg(6, 5, 6, 6)}
	a := &Wall{id: 3, Segment: geom.Seg(5, 5, 6, 5)}
	for _, w := range []*Wall{far, b, a} {
		if !ix.insert(w) {
			t.Fatalf("insert %v", w.Segment)
		}
	}

	got := ix.near(5, 5)
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Fatalf("near(5,5): got %v", got)
	}
	if got := ix.within(5, 5, 2); len(got) != 2 {
		t.Fatalf("within r=2: got %d walls", len(got))
	}
	got = ix.within(5, 5, 8)
	if len(got) != 3 || got[0] != far || got[1] != b || got[2] != a {
		t.Fatalf("within r=8 must list each wall once by id, got %v", got)
	}
}

func TestObjIndex(t *testing.T) {
	x := newObjIndex()
	c := &Coin{body: body{id: 7, Circle: geom.Circle{X: 2.5, Y: 2.5, R: 0.42}}}
	h := &Home{body: body{id: 3, Circle: geom.Circle{X: 2.5, Y: 3.5, R: 0.26}}}
	for _, o := range []circular{c, h} {
		if err := x.insert(o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got := x.near(2.5, 3, 0.5)
	if len(got) != 2 || got[0] != h || got[1] != c {
		t.Fatalf("near: expected home then coin, got %v", got)
	}

	c.X, c.Y = 8.5, 8.5
	if err := x.update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if x.size() != 2 {
		t.Fatalf("update must not duplicate, size=%d", x.size())
	}
	if got := x.near(2.5, 3, 0.5); len(got) != 1 || got[0] != h {
		t.Fatalf("moved coin still found at old place: %v", got)
	}
	if got := x.near(8.5, 8.5, 0.1); len(got) != 1 || got[0] != c {
		t.Fatalf("moved coin not found: %v", got)
	}

	if err := x.insert(&Coin{body: body{id: 9}}); err == nil {
		t.Fatalf("zero radius must fail")
	}
}
