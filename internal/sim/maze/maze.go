// Package maze reads, writes and generates arena wall layouts.
//
// The text format is a whitespace-separated stream of records
//
//	wall <x0> <y0> <x1> <y1>
//
// with integer tile-corner coordinates. The arena boundary is never stored in
// the file; Boundary synthesizes it from the arena size.
package maze

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/harp-lab/maze-game/internal/sim/geom"
)

var ErrMalformed = errors.New("malformed maze")

type Maze struct {
	Width, Height int
	// Interior walls in file order.
	Walls []geom.Segment
}

// Boundary returns the unit segments enclosing a width x height arena.
func (m *Maze) Boundary() []geom.Segment {
	w, h := float64(m.Width), float64(m.Height)
	out := make([]geom.Segment, 0, 2*(m.Width+m.Height))
	for i := 0; i < m.Width; i++ {
		x := float64(i)
		out = append(out, geom.Seg(x, 0, x+1, 0), geom.Seg(x, h, x+1, h))
	}
	for i := 0; i < m.Height; i++ {
		y := float64(i)
		out = append(out, geom.Seg(0, y, 0, y+1), geom.Seg(w, y, w, y+1))
	}
	return out
}

// All returns the interior walls followed by the boundary.
func (m *Maze) All() []geom.Segment {
	return append(append([]geom.Segment(nil), m.Walls...), m.Boundary()...)
}

func LoadFile(path string, width, height int) (*Maze, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Parse(f, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads wall records for a width x height arena. Any token that is not
// part of a complete, in-bounds record fails with ErrMalformed.
func Parse(r io.Reader, width, height int) (*Maze, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: arena %dx%d", ErrMalformed, width, height)
	}
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	m := &Maze{Width: width, Height: height}
	for rec := 1; sc.Scan(); rec++ {
		if kw := sc.Text(); kw != "wall" {
			return nil, fmt.Errorf("%w: record %d: unknown keyword %q", ErrMalformed, rec, kw)
		}
		var c [4]int
		for i := range c {
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("%w: record %d: truncated", ErrMalformed, rec)
			}
			v, err := strconv.Atoi(sc.Text())
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %q is not an integer", ErrMalformed, rec, sc.Text())
			}
			c[i] = v
		}
		for i, v := range c {
			limit := width
			if i%2 == 1 {
				limit = height
			}
			if v < 0 || v > limit {
				return nil, fmt.Errorf("%w: record %d: coordinate %d outside 0..%d", ErrMalformed, rec, v, limit)
			}
		}
		if c[0] == c[2] && c[1] == c[3] {
			return nil, fmt.Errorf("%w: record %d: zero-length wall", ErrMalformed, rec)
		}
		m.Walls = append(m.Walls, geom.Seg(float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3])))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Write emits walls in the load format, one record per line.
func Write(w io.Writer, walls []geom.Segment) error {
	bw := bufio.NewWriter(w)
	for _, s := range walls {
		if _, err := fmt.Fprintf(bw, "wall %s %s %s %s\n", num(s.X0), num(s.Y0), num(s.X1), num(s.Y1)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Generate carves a perfect maze (every cell reachable by exactly one path)
// with an iterative recursive backtracker and returns its interior walls.
func Generate(width, height int, rng *rand.Rand) *Maze {
	m := &Maze{Width: width, Height: height}
	if width < 1 || height < 1 {
		return m
	}
	// open[y][x] bit 0: passage east, bit 1: passage south.
	open := make([][]uint8, height)
	visited := make([][]bool, height)
	for y := range open {
		open[y] = make([]uint8, width)
		visited[y] = make([]bool, width)
	}

	type cell struct{ x, y int }
	dirs := []cell{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	start := cell{rng.Intn(width), rng.Intn(height)}
	visited[start.y][start.x] = true
	stack := []cell{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		var next []cell
		for _, d := range dirs {
			n := cell{cur.x + d.x, cur.y + d.y}
			if n.x >= 0 && n.x < width && n.y >= 0 && n.y < height && !visited[n.y][n.x] {
				next = append(next, n)
			}
		}
		if len(next) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		n := next[rng.Intn(len(next))]
		switch {
		case n.x > cur.x:
			open[cur.y][cur.x] |= 1
		case n.x < cur.x:
			open[n.y][n.x] |= 1
		case n.y > cur.y:
			open[cur.y][cur.x] |= 2
		default:
			open[n.y][n.x] |= 2
		}
		visited[n.y][n.x] = true
		stack = append(stack, n)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)
			if x+1 < width && open[y][x]&1 == 0 {
				m.Walls = append(m.Walls, geom.Seg(fx+1, fy, fx+1, fy+1))
			}
			if y+1 < height && open[y][x]&2 == 0 {
				m.Walls = append(m.Walls, geom.Seg(fx, fy+1, fx+1, fy+1))
			}
		}
	}
	return m
}
