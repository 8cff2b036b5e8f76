package geom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosestPoint_ClampedAndNearest(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		s := Seg(r.Float64()*10, r.Float64()*10, r.Float64()*10, r.Float64()*10)
		px, py := r.Float64()*14-2, r.Float64()*14-2

		cx, cy := s.ClosestPoint(px, py)

		// The result stays on the segment: collinear with the endpoints and
		// inside their bounding box.
		require.InDelta(t, 0, (s.X1-s.X0)*(cy-s.Y0)-(s.Y1-s.Y0)*(cx-s.X0), 1e-9)
		assert.GreaterOrEqual(t, cx, math.Min(s.X0, s.X1)-1e-9)
		assert.LessOrEqual(t, cx, math.Max(s.X0, s.X1)+1e-9)
		assert.GreaterOrEqual(t, cy, math.Min(s.Y0, s.Y1)-1e-9)
		assert.LessOrEqual(t, cy, math.Max(s.Y0, s.Y1)+1e-9)

		d := Dist(px, py, cx, cy)
		assert.LessOrEqual(t, d, Dist(px, py, s.X0, s.Y0)+1e-9)
		assert.LessOrEqual(t, d, Dist(px, py, s.X1, s.Y1)+1e-9)
	}
}

func TestClosestPoint_Clamps(t *testing.T) {
	s := Seg(0, 0, 1, 0)

	x, y := s.ClosestPoint(-3, 2)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	x, y = s.ClosestPoint(5, -1)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 0.0, y)

	x, y = s.ClosestPoint(0.25, 3)
	assert.InDelta(t, 0.25, x, 1e-12)
	assert.Equal(t, 0.0, y)
}

func TestClosestPoint_ZeroLength(t *testing.T) {
	s := Seg(2, 3, 2, 3)
	x, y := s.ClosestPoint(10, 10)
	assert.Equal(t, 2.0, x)
	assert.Equal(t, 3.0, y)
}

func TestSegmentWithinRange(t *testing.T) {
	s := Seg(1, 0, 1, 1)
	assert.True(t, s.WithinRange(0.75, 0.5, 0.26))
	assert.False(t, s.WithinRange(0.5, 0.5, 0.26))
	assert.True(t, s.WithinRange(1.2, 1.2, 0.3))
}

func TestCircleWithinRange_SumOfRadii(t *testing.T) {
	c := Circle{X: 0, Y: 0, R: 0.42}
	assert.True(t, c.WithinRange(0.67, 0, 0.26))
	assert.False(t, c.WithinRange(0.69, 0, 0.26))
	assert.True(t, c.WithinRange(0.3, 0.3, 0.26))
}

func TestSegmentAngles_Plain(t *testing.T) {
	// Wall to the right of the observer.
	s := Seg(1, 0, 1, 1)
	lo, hi := s.MinAngleTo(0.5, 0.5), s.MaxAngleTo(0.5, 0.5)
	assert.InDelta(t, -math.Pi/4, lo, 1e-12)
	assert.InDelta(t, math.Pi/4, hi, 1e-12)
	assert.Less(t, lo, hi)
}

func TestSegmentAngles_WrapAround(t *testing.T) {
	// Wall to the left of the observer crosses the +-pi discontinuity.
	s := Seg(0, 0, 0, 1)
	lo, hi := s.MinAngleTo(0.5, 0.5), s.MaxAngleTo(0.5, 0.5)
	assert.InDelta(t, 3*math.Pi/4, lo, 1e-12)
	assert.InDelta(t, -3*math.Pi/4, hi, 1e-12)
	assert.Greater(t, lo, hi, "wrapping interval is signalled by min > max")

	// Endpoint order does not matter.
	r := Seg(0, 1, 0, 0)
	assert.Equal(t, lo, r.MinAngleTo(0.5, 0.5))
	assert.Equal(t, hi, r.MaxAngleTo(0.5, 0.5))
}

func TestSegmentAngles_UpIsPositive(t *testing.T) {
	// y grows downward, so a wall at y=0 above an observer at y=0.5 is at +pi/2.
	s := Seg(0, 0, 1, 0)
	lo, hi := s.MinAngleTo(0.5, 0.5), s.MaxAngleTo(0.5, 0.5)
	assert.InDelta(t, math.Pi/4, lo, 1e-12)
	assert.InDelta(t, 3*math.Pi/4, hi, 1e-12)
}

func TestCircleAngles_Coincide(t *testing.T) {
	c := Circle{X: 3, Y: 1, R: 0.42}
	assert.Equal(t, c.MinAngleTo(1, 1), c.MaxAngleTo(1, 1))
	assert.InDelta(t, 0, c.MinAngleTo(1, 1), 1e-12)
}

func TestRayHit(t *testing.T) {
	s := Seg(1, 0, 1, 1)

	d, ok := s.RayHit(0.5, 0.5, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.5, d, 1e-12)

	_, ok = s.RayHit(0.5, 0.5, math.Pi)
	assert.False(t, ok, "ray pointing away misses")

	_, ok = s.RayHit(0.5, 0.5, math.Pi/2)
	assert.False(t, ok, "ray pointing up misses a vertical wall to the right")

	d, ok = s.RayHit(0.5, 0.5, math.Pi/4)
	require.True(t, ok, "ray through the endpoint still hits")
	assert.InDelta(t, math.Sqrt2/2, d, 1e-9)
}

func TestNormalize(t *testing.T) {
	assert.InDelta(t, -math.Pi/2, Normalize(3*math.Pi/2), 1e-12)
	assert.InDelta(t, math.Pi/2, Normalize(-3*math.Pi/2), 1e-12)
	assert.InDelta(t, 0.3, Normalize(0.3), 1e-12)
}

func TestSame(t *testing.T) {
	assert.True(t, Seg(0, 0, 1, 0).Same(Seg(1, 0, 0, 0)))
	assert.False(t, Seg(0, 0, 1, 0).Same(Seg(0, 0, 0, 1)))
}
