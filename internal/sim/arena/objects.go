package arena

import (
	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
)

// body is the shared state of every disc-shaped object: position, radius and
// an animation phase counter.
type body struct {
	id int
	geom.Circle
	Phase int
}

func (b *body) ID() int           { return b.id }
func (b *body) Disc() geom.Circle { return b.Circle }

// Flag never moves. While carried it fades out (negative phase) and is
// ignored by sensing and collisions until its carrier scores.
type Flag struct {
	body
	Side    protocol.Side
	carrier *Agent
}

func (f *Flag) Kind() Kind { return KindFlag }

func (f *Flag) Carried() bool { return f.carrier != nil }

func (f *Flag) capture(by *Agent) {
	f.carrier = by
	if f.Phase >= 0 {
		f.Phase = -1
	}
}

func (f *Flag) returnHome() {
	f.carrier = nil
	if f.Phase < 0 {
		f.Phase = 0
	}
}

// advance steps the idle animation, or the fade-out down to -fadeTicks.
func (f *Flag) advance(fadeTicks int) {
	switch {
	case f.Phase >= 0:
		f.Phase++
	case f.Phase > -fadeTicks:
		f.Phase--
	}
}

// Coin is hidden while its phase is negative and reappears at zero.
type Coin struct {
	body
}

func (c *Coin) Kind() Kind { return KindCoin }

func (c *Coin) Visible() bool { return c.Phase >= 0 }

func (c *Coin) advance() { c.Phase++ }

// Home marks where an agent scores a carried flag. It has no observation line.
type Home struct {
	body
	Side protocol.Side
}

func (h *Home) Kind() Kind { return KindHome }
