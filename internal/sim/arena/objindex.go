package arena

import (
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
)

// indexed pins the bounds an object was inserted with, so it can be found and
// deleted after the object itself has moved.
type indexed struct {
	obj circular
	bb  rtreego.Rect
}

func (i *indexed) Bounds() rtreego.Rect { return i.bb }

// objIndex is the broad phase for flags, coins and homes.
type objIndex struct {
	tree  *rtreego.Rtree
	items map[int]*indexed
}

func newObjIndex() *objIndex {
	return &objIndex{
		tree:  rtreego.NewTree(2, 4, 16),
		items: make(map[int]*indexed),
	}
}

func discBounds(o circular) (rtreego.Rect, error) {
	d := o.Disc()
	return rtreego.NewRect(rtreego.Point{d.X - d.R, d.Y - d.R}, []float64{2 * d.R, 2 * d.R})
}

func (x *objIndex) insert(o circular) error {
	bb, err := discBounds(o)
	if err != nil {
		return fmt.Errorf("%w: bounds of %s %d: %v", ErrInvariant, o.Kind(), o.ID(), err)
	}
	it := &indexed{obj: o, bb: bb}
	x.items[o.ID()] = it
	x.tree.Insert(it)
	return nil
}

// update re-files an object after it moved.
func (x *objIndex) update(o circular) error {
	if it, ok := x.items[o.ID()]; ok {
		x.tree.Delete(it)
		delete(x.items, o.ID())
	}
	return x.insert(o)
}

// near returns the objects whose bounds meet the square of half-size r around
// (px,py), ordered by id.
func (x *objIndex) near(px, py, r float64) []circular {
	bb, err := rtreego.NewRect(rtreego.Point{px - r, py - r}, []float64{2 * r, 2 * r})
	if err != nil {
		return nil
	}
	hits := x.tree.SearchIntersect(bb)
	out := make([]circular, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*indexed).obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (x *objIndex) size() int { return x.tree.Size() }
