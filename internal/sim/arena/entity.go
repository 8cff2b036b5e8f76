package arena

import (
	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
)

// Kind tags every entity for collision dispatch.
type Kind uint8

const (
	KindWall Kind = iota
	KindTempWall
	KindAgent
	KindFlag
	KindCoin
	KindHome

	numKinds
)

var kindNames = [numKinds]string{"wall", "twall", "agent", "flag", "coin", "home"}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Entity is anything that takes part in sensing or collisions.
type Entity interface {
	Kind() Kind
	ID() int
	// WithinRange reports whether a disc of radius r at (px,py) touches the entity.
	WithinRange(px, py, r float64) bool
	ClosestPoint(px, py float64) (float64, float64)
	MinAngleTo(x, y float64) float64
	MaxAngleTo(x, y float64) float64
}

// wallEntity is a segment-shaped Entity.
type wallEntity interface {
	Entity
	Seg() geom.Segment
}

// circular is a disc-shaped Entity.
type circular interface {
	Entity
	Disc() geom.Circle
}

type Wall struct {
	id int
	geom.Segment
}

func (w *Wall) Kind() Kind        { return KindWall }
func (w *Wall) ID() int           { return w.id }
func (w *Wall) Seg() geom.Segment { return w.Segment }

// TempWall is a wall placed by an agent. It is removed when TicksLeft runs out.
type TempWall struct {
	Wall
	TicksLeft int
	Side      protocol.Side
}

func (t *TempWall) Kind() Kind { return KindTempWall }

// tick ages the wall and reports whether it has expired.
func (t *TempWall) tick() bool {
	t.TicksLeft--
	return t.TicksLeft <= 0
}
