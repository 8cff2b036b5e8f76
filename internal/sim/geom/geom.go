// Package geom holds the 2D primitives the arena is built from: wall segments,
// circles and the angle helpers used by the visibility engine.
//
// Angles seen from an observer use the screen convention of the arena, where y
// grows downward: the angle from o to p is atan2(o.y-p.y, p.x-o.x), so 0 points
// right and +pi/2 points up on screen.
package geom

import "math"

const eps = 1e-12

// Angle returns the screen angle from (ox,oy) toward (px,py), in (-pi, pi].
func Angle(ox, oy, px, py float64) float64 {
	return math.Atan2(oy-py, px-ox)
}

// Normalize wraps an angle to [-pi, pi].
func Normalize(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Dist returns the Euclidean distance between two points.
func Dist(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}

// Segment is an immutable wall segment between two endpoints.
type Segment struct {
	X0 float64 `json:"x0" msgpack:"x0"`
	Y0 float64 `json:"y0" msgpack:"y0"`
	X1 float64 `json:"x1" msgpack:"x1"`
	Y1 float64 `json:"y1" msgpack:"y1"`
}

func Seg(x0, y0, x1, y1 float64) Segment {
	return Segment{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Same reports whether both segments join the same endpoints, in either order.
func (s Segment) Same(o Segment) bool {
	if s == o {
		return true
	}
	return s.X0 == o.X1 && s.Y0 == o.Y1 && s.X1 == o.X0 && s.Y1 == o.Y0
}

func (s Segment) Midpoint() (float64, float64) {
	return (s.X0 + s.X1) / 2, (s.Y0 + s.Y1) / 2
}

// ClosestPoint projects (px,py) onto the segment, clamping the projection
// parameter to [0,1]. A zero-length segment yields its start point.
func (s Segment) ClosestPoint(px, py float64) (float64, float64) {
	dx := s.X1 - s.X0
	dy := s.Y1 - s.Y0
	l2 := dx*dx + dy*dy
	if l2 < eps {
		return s.X0, s.Y0
	}
	t := ((px-s.X0)*dx + (py-s.Y0)*dy) / l2
	t = math.Min(math.Max(t, 0), 1)
	return s.X0 + t*dx, s.Y0 + t*dy
}

// WithinRange reports whether (px,py) lies within r of the segment.
func (s Segment) WithinRange(px, py, r float64) bool {
	cx, cy := s.ClosestPoint(px, py)
	return math.Hypot(cx-px, cy-py) <= r
}

// MinAngleTo returns the angle, seen from (x,y), at which a clockwise scan
// first meets the segment. When the segment straddles the +-pi discontinuity
// the returned value is greater than MaxAngleTo.
func (s Segment) MinAngleTo(x, y float64) float64 {
	lo, _ := s.span(x, y)
	return lo
}

// MaxAngleTo returns the angle, seen from (x,y), at which a clockwise scan
// leaves the segment.
func (s Segment) MaxAngleTo(x, y float64) float64 {
	_, hi := s.span(x, y)
	return hi
}

func (s Segment) span(x, y float64) (float64, float64) {
	a0 := Angle(x, y, s.X0, s.Y0)
	a1 := Angle(x, y, s.X1, s.Y1)
	lo, hi := math.Min(a0, a1), math.Max(a0, a1)
	// Seen from outside, a segment subtends less than pi; a wider naive span
	// means the real span is the complement, crossing the discontinuity.
	if hi-lo > math.Pi {
		return hi, lo
	}
	return lo, hi
}

// RayHit returns the distance from (ox,oy) along the screen-angle ray to the
// segment, and false when the ray misses it.
func (s Segment) RayHit(ox, oy, angle float64) (float64, bool) {
	dx, dy := math.Cos(angle), -math.Sin(angle)
	ex, ey := s.X1-s.X0, s.Y1-s.Y0
	denom := dx*ey - dy*ex
	if math.Abs(denom) < eps {
		return 0, false
	}
	wx, wy := s.X0-ox, s.Y0-oy
	t := (wx*ey - wy*ex) / denom
	u := (wx*dy - wy*dx) / denom
	const tol = 1e-9
	if t < -tol || u < -tol || u > 1+tol {
		return 0, false
	}
	return math.Max(t, 0), true
}

// Circle is a disc used for agents, flags, coins and home markers.
type Circle struct {
	X, Y, R float64
}

// ClosestPoint returns the point on the circle boundary nearest (px,py).
func (c Circle) ClosestPoint(px, py float64) (float64, float64) {
	a := math.Atan2(py-c.Y, px-c.X)
	return c.X + c.R*math.Cos(a), c.Y + c.R*math.Sin(a)
}

// WithinRange reports whether a disc of radius r at (px,py) overlaps the
// circle; compared in squared form.
func (c Circle) WithinRange(px, py, r float64) bool {
	dx, dy := c.X-px, c.Y-py
	rr := c.R + r
	return dx*dx+dy*dy <= rr*rr
}

// MinAngleTo and MaxAngleTo coincide for circles: the angle to the centre.
func (c Circle) MinAngleTo(x, y float64) float64 { return Angle(x, y, c.X, c.Y) }
func (c Circle) MaxAngleTo(x, y float64) float64 { return Angle(x, y, c.X, c.Y) }
