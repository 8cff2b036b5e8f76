package arena

import (
	"fmt"
	"math"

	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
)

// Agent is a disc steered by an external controller toward a target point.
// Heading A uses the physics convention: the position advances by
// (V cos A, V sin A) per tick.
type Agent struct {
	id int
	geom.Circle

	A, V   float64
	MaxV   float64
	Accel  float64
	TX, TY float64

	HomeX, HomeY float64
	Side         protocol.Side
	Name         string

	Flags      int
	CoinsHeld  int
	CoinsTotal int

	carrying *Flag
	ctl      Controller

	log      []string
	logNext  int
	logWidth int

	lastDX, lastDY float64

	// Walls reported in this tick's observation.
	seenWalls []int
}

func newAgent(id int, side protocol.Side, x, y float64, cfg Config, ctl Controller) *Agent {
	return &Agent{
		id:       id,
		Circle:   geom.Circle{X: x, Y: y, R: cfg.AgentRadius},
		MaxV:     cfg.MaxSpeed,
		Accel:    cfg.Accel,
		TX:       x,
		TY:       y,
		HomeX:    x,
		HomeY:    y,
		Side:     side,
		ctl:      ctl,
		log:      make([]string, cfg.LogEntries),
		logWidth: cfg.LogWidth,
	}
}

func (a *Agent) Kind() Kind        { return KindAgent }
func (a *Agent) ID() int           { return a.id }
func (a *Agent) Disc() geom.Circle { return a.Circle }

// SeenWalls returns the ids of the walls in the agent's latest observation.
func (a *Agent) SeenWalls() []int { return a.seenWalls }

// Carrying returns the flag the agent holds, or nil.
func (a *Agent) Carrying() *Flag { return a.carrying }

// Log returns a copy of the command log slots in storage order. The slot after
// the newest entry and the one after it are always blank.
func (a *Agent) Log() []string { return append([]string(nil), a.log...) }

func (a *Agent) pushLog(s string) {
	if r := []rune(s); len(r) > a.logWidth {
		s = string(r[:a.logWidth])
	}
	n := len(a.log)
	a.log[a.logNext] = s
	a.logNext = (a.logNext + 1) % n
	a.log[a.logNext] = ""
	a.log[(a.logNext+1)%n] = ""
}

// move applies thrust toward the target, approach braking and the speed cap,
// then advances the position. The delta is kept so a bounce can undo it.
func (a *Agent) move() {
	thrust := math.Atan2(a.TY-a.Y, a.TX-a.X)
	// Thrust is most efficient at half the cap.
	eff := math.Max(1-math.Abs(a.V-a.MaxV/2)/a.MaxV, 0.1)
	acc := a.Accel * eff
	xv := a.V*math.Cos(a.A) + acc*math.Cos(thrust)
	yv := a.V*math.Sin(a.A) + acc*math.Sin(thrust)
	a.V = math.Hypot(xv, yv)
	if a.V > 0 {
		a.A = math.Atan2(yv, xv)
	}

	d := math.Hypot(a.TX-a.X, a.TY-a.Y)
	switch {
	case d < a.V:
		if a.V > a.MaxV/32 {
			a.V /= 4
		} else {
			a.V = 0
		}
	case d < 0.2 && a.V > a.MaxV/16:
		a.V = math.Max(a.V-0.35*a.MaxV, a.MaxV/16)
	}

	if a.V > a.MaxV {
		a.V += 0.95 * (a.MaxV - a.V)
	}
	a.lastDX = a.V * math.Cos(a.A)
	a.lastDY = a.V * math.Sin(a.A)
	a.X += a.lastDX
	a.Y += a.lastDY
}

// bounce undoes the last move and heads away from the wall's closest point,
// speeding up by mult.
func (a *Agent) bounce(s geom.Segment, mult float64) error {
	a.X -= a.lastDX
	a.Y -= a.lastDY
	a.lastDX, a.lastDY = 0, 0

	cx, cy := s.ClosestPoint(a.X, a.Y)
	if a.X == cx && a.Y == cy {
		return fmt.Errorf("%w: agent %s centre lies on wall %v", ErrInvariant, a.Side, s)
	}
	a.A = math.Atan2(a.Y-cy, a.X-cx)
	a.V *= mult
	return nil
}
