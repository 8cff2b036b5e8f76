// Package dfs is a reference agent that explores the maze depth first,
// steering tile centre to tile centre.
package dfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/harp-lab/maze-game/internal/protocol"
)

// A tile counts as reached once the agent is this close to its centre.
const arriveRadius = 0.2

type tile struct{ x, y int }

// edge is a unit wall between lattice points, stored with its smaller
// endpoint first.
type edge struct{ x0, y0, x1, y1 int }

func newEdge(x0, y0, x1, y1 int) edge {
	if x1 < x0 || (x1 == x0 && y1 < y0) {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}
	return edge{x0, y0, x1, y1}
}

// Bot holds the exploration state. It is not safe for concurrent use.
type Bot struct {
	name  string
	walls map[edge]struct{}
	seen  map[tile]bool
	dead  map[tile]bool
	plan  []tile

	cur     tile
	located bool
}

// New returns a bot. With a positive width and height the arena boundary is
// known up front; otherwise it is learned from observed walls.
func New(name string, width, height int) *Bot {
	b := &Bot{
		name:  name,
		walls: map[edge]struct{}{},
		seen:  map[tile]bool{},
		dead:  map[tile]bool{},
	}
	for x := 0; x < width; x++ {
		b.addWall(x, 0, x+1, 0)
		b.addWall(x, height, x+1, height)
	}
	for y := 0; y < height; y++ {
		b.addWall(0, y, 0, y+1)
		b.addWall(width, y, width, y+1)
	}
	return b
}

func (b *Bot) Hello() string { return protocol.Name(b.name) }

func (b *Bot) addWall(x0, y0, x1, y1 int) {
	b.walls[newEdge(x0, y0, x1, y1)] = struct{}{}
}

func (b *Bot) wall(x0, y0, x1, y1 int) bool {
	_, ok := b.walls[newEdge(x0, y0, x1, y1)]
	return ok
}

// Update folds one observation into the bot and returns the commands to send,
// if any.
func (b *Bot) Update(o protocol.Observation) []string {
	for _, w := range o.Walls {
		b.addWall(int(w.X0), int(w.Y0), int(w.X1), int(w.Y1))
	}
	for _, w := range o.TempWalls {
		b.addWall(int(w.X0), int(w.Y0), int(w.X1), int(w.Y1))
	}

	tx, ty := int(math.Floor(o.X)), int(math.Floor(o.Y))
	if (!b.located || tx != b.cur.x || ty != b.cur.y) &&
		math.Hypot(o.X-(float64(tx)+0.5), o.Y-(float64(ty)+0.5)) < arriveRadius {
		b.cur = tile{tx, ty}
		b.located = true
		if len(b.plan) == 0 {
			b.plan = []tile{b.cur}
		}
	}

	if len(b.plan) == 0 || b.plan[len(b.plan)-1] != b.cur {
		return nil
	}
	b.advance()
	if len(b.plan) == 0 {
		return []string{"comment explored"}
	}
	next := b.plan[len(b.plan)-1]
	return []string{protocol.Toward(float64(next.x)+0.5, float64(next.y)+0.5)}
}

// advance pushes the first open unvisited neighbour, preferring down, right,
// up and left in that order, or backtracks.
func (b *Bot) advance() {
	t := b.cur
	b.seen[t] = true
	steps := []struct {
		to   tile
		open bool
	}{
		{tile{t.x, t.y + 1}, !b.wall(t.x, t.y+1, t.x+1, t.y+1)},
		{tile{t.x + 1, t.y}, !b.wall(t.x+1, t.y, t.x+1, t.y+1)},
		{tile{t.x, t.y - 1}, !b.wall(t.x, t.y, t.x+1, t.y)},
		{tile{t.x - 1, t.y}, !b.wall(t.x, t.y, t.x, t.y+1)},
	}
	for _, s := range steps {
		if s.open && !b.seen[s.to] && !b.dead[s.to] {
			b.plan = append(b.plan, s.to)
			return
		}
	}
	b.dead[t] = true
	b.plan = b.plan[:len(b.plan)-1]
}

// Run speaks the agent protocol over r and w until the arena closes the
// stream or ctx is cancelled.
func Run(ctx context.Context, r io.Reader, w io.Writer, b *Bot, logger *log.Logger) error {
	if _, err := fmt.Fprintln(w, b.Hello()); err != nil {
		return err
	}
	obs := protocol.NewObservationReader(r)
	for ctx.Err() == nil {
		o, err := obs.Next()
		if errors.Is(err, io.EOF) {
			logger.Info("arena closed the stream", "seen", len(b.seen))
			return nil
		}
		if err != nil {
			return err
		}
		for _, line := range b.Update(o) {
			logger.Debug("send", "cmd", line)
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}
