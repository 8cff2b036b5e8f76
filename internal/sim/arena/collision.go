package arena

import (
	"errors"
	"fmt"
)

// ErrInvariant marks a state the simulation must never reach. It is fatal.
var ErrInvariant = errors.New("arena invariant violated")

type contactFunc func(m *Match, initiator, target Entity) error

// contacts maps (initiator, target) kinds to their resolution. Empty cells are
// pairs that must never meet.
var contacts = [numKinds][numKinds]contactFunc{
	KindWall:     {KindAgent: wallHitsAgent},
	KindTempWall: {KindAgent: wallHitsAgent},
	KindFlag:     {KindAgent: flagMeetsAgent},
	KindCoin:     {KindAgent: coinMeetsAgent},
	KindHome:     {KindAgent: homeMeetsAgent},
}

// visit offers target to initiator. Segments always notify and let the rule
// decide; discs notify only when target overlaps them.
func (m *Match) visit(initiator, target Entity) error {
	switch initiator.Kind() {
	case KindWall, KindTempWall:
		return m.notify(initiator, target)
	}
	c, ok := initiator.(circular)
	if !ok {
		return fmt.Errorf("%w: %s %d has no disc", ErrInvariant, initiator.Kind(), initiator.ID())
	}
	d := c.Disc()
	if target.WithinRange(d.X, d.Y, d.R) {
		return m.notify(initiator, target)
	}
	return nil
}

func (m *Match) notify(initiator, target Entity) error {
	fn := contacts[initiator.Kind()][target.Kind()]
	if fn == nil {
		return fmt.Errorf("%w: no contact rule for %s -> %s", ErrInvariant, initiator.Kind(), target.Kind())
	}
	return fn(m, initiator, target)
}

func wallHitsAgent(m *Match, initiator, target Entity) error {
	w := initiator.(wallEntity)
	a := target.(*Agent)
	if !w.WithinRange(a.X, a.Y, a.R) {
		return nil
	}
	return a.bounce(w.Seg(), m.cfg.Bounce)
}

func flagMeetsAgent(m *Match, initiator, target Entity) error {
	f := initiator.(*Flag)
	a := target.(*Agent)
	if f.X == a.HomeX && f.Y == a.HomeY {
		return nil
	}
	if f.Carried() || a.carrying != nil {
		return nil
	}
	f.capture(a)
	a.carrying = f
	m.logger.Info("flag captured", "tick", m.tick, "side", a.Side, "flag", f.Side)
	return nil
}

func homeMeetsAgent(m *Match, initiator, target Entity) error {
	h := initiator.(*Home)
	a := target.(*Agent)
	if a.carrying == nil || h.Side != a.Side {
		return nil
	}
	f := a.carrying
	f.returnHome()
	a.carrying = nil
	a.Flags++
	m.logger.Info("flag scored", "tick", m.tick, "side", a.Side, "flags", a.Flags)
	return nil
}

func coinMeetsAgent(m *Match, initiator, target Entity) error {
	c := initiator.(*Coin)
	a := target.(*Agent)
	if !c.Visible() {
		return nil
	}
	a.CoinsHeld++
	a.CoinsTotal++
	m.respawnCoin(c)
	return nil
}
