package protocol

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/harp-lab/maze-game/internal/sim/geom"
)

// ObservationWriter builds one observation block. Lines appear in call order.
type ObservationWriter struct {
	buf []byte
}

// NewObservation starts a block with the observer's own status line.
func NewObservation(x, y float64, coinsHeld int) *ObservationWriter {
	w := &ObservationWriter{buf: make([]byte, 0, 512)}
	w.buf = append(w.buf, TagBot...)
	w.nums(x, y)
	w.buf = append(w.buf, ' ')
	w.buf = strconv.AppendInt(w.buf, int64(coinsHeld), 10)
	w.buf = append(w.buf, '\n')
	return w
}

func (w *ObservationWriter) nums(vs ...float64) {
	for _, v := range vs {
		w.buf = append(w.buf, ' ')
		w.buf = strconv.AppendFloat(w.buf, v, 'f', 6, 64)
	}
}

func (w *ObservationWriter) line(tag string, vs ...float64) {
	w.buf = append(w.buf, tag...)
	w.nums(vs...)
	w.buf = append(w.buf, '\n')
}

func (w *ObservationWriter) Wall(s geom.Segment) { w.line(TagWall, s.X0, s.Y0, s.X1, s.Y1) }

func (w *ObservationWriter) TempWall(s geom.Segment, ticksLeft int) {
	w.buf = append(w.buf, TagTempWall...)
	w.nums(s.X0, s.Y0, s.X1, s.Y1)
	w.buf = append(w.buf, ' ')
	w.buf = strconv.AppendInt(w.buf, int64(ticksLeft), 10)
	w.buf = append(w.buf, '\n')
}

func (w *ObservationWriter) Flag(side Side, x, y float64) { w.line(side.FlagTag(), x, y) }
func (w *ObservationWriter) Coin(x, y float64)            { w.line(TagCoin, x, y) }
func (w *ObservationWriter) Opponent(x, y float64)        { w.line(TagOpponent, x, y) }

func (w *ObservationWriter) LineAngle(s geom.Segment, lo, hi float64) {
	w.line(TagLineAngle, s.X0, s.Y0, s.X1, s.Y1, lo, hi)
}

// Bytes returns the finished block including its terminating empty line. The
// writer must not be used afterwards.
func (w *ObservationWriter) Bytes() []byte {
	return append(w.buf, '\n')
}

type Point struct{ X, Y float64 }

type TempWall struct {
	geom.Segment
	TicksLeft int
}

type LineAngle struct {
	geom.Segment
	Min, Max float64
}

// Observation is the decoded form of a block, as an agent sees it.
type Observation struct {
	X, Y       float64
	CoinsHeld  int
	Walls      []geom.Segment
	TempWalls  []TempWall
	GreenFlags []Point
	RedFlags   []Point
	Coins      []Point
	Opponents  []Point
	LineAngles []LineAngle
}

// ObservationReader reads blocks from the arena's side of the pipe.
type ObservationReader struct {
	sc *bufio.Scanner
}

func NewObservationReader(r io.Reader) *ObservationReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ObservationReader{sc: sc}
}

// Next returns the next block. It returns io.EOF when the stream ends cleanly
// or the arena sends the close line.
func (r *ObservationReader) Next() (Observation, error) {
	var lines []string
	for r.sc.Scan() {
		l := strings.TrimRight(r.sc.Text(), "\r")
		if l == "" {
			if len(lines) == 0 {
				continue
			}
			return ParseObservation(lines)
		}
		if l == ControlClose && len(lines) == 0 {
			return Observation{}, io.EOF
		}
		lines = append(lines, l)
	}
	if err := r.sc.Err(); err != nil {
		return Observation{}, err
	}
	if len(lines) > 0 {
		return Observation{}, violation(lines[0], "truncated observation")
	}
	return Observation{}, io.EOF
}

var tagArity = map[string]int{
	TagBot:       3,
	TagWall:      4,
	TagTempWall:  5,
	TagGreenFlag: 2,
	TagRedFlag:   2,
	TagCoin:      2,
	TagOpponent:  2,
	TagLineAngle: 6,
}

// ParseObservation decodes the lines of one block, status line first.
func ParseObservation(lines []string) (Observation, error) {
	var o Observation
	if len(lines) == 0 {
		return o, violation("", "empty observation")
	}
	for i, l := range lines {
		f := strings.Fields(l)
		if len(f) == 0 {
			return o, violation(l, "blank line inside observation")
		}
		if (i == 0) != (f[0] == TagBot) {
			return o, violation(l, "status line must come first, once")
		}
		if !IsKnownTag(f[0]) {
			return o, violation(l, "unknown tag %q", f[0])
		}
		args := f[1:]
		want := tagArity[f[0]]
		if len(args) != want {
			return o, violation(l, "%s takes %d values", f[0], want)
		}
		v := make([]float64, len(args))
		for j, a := range args {
			x, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return o, violation(l, "bad number %q", a)
			}
			v[j] = x
		}
		switch f[0] {
		case TagBot:
			o.X, o.Y, o.CoinsHeld = v[0], v[1], int(v[2])
		case TagWall:
			o.Walls = append(o.Walls, geom.Seg(v[0], v[1], v[2], v[3]))
		case TagTempWall:
			o.TempWalls = append(o.TempWalls, TempWall{Segment: geom.Seg(v[0], v[1], v[2], v[3]), TicksLeft: int(v[4])})
		case TagGreenFlag:
			o.GreenFlags = append(o.GreenFlags, Point{v[0], v[1]})
		case TagRedFlag:
			o.RedFlags = append(o.RedFlags, Point{v[0], v[1]})
		case TagCoin:
			o.Coins = append(o.Coins, Point{v[0], v[1]})
		case TagOpponent:
			o.Opponents = append(o.Opponents, Point{v[0], v[1]})
		case TagLineAngle:
			o.LineAngles = append(o.LineAngles, LineAngle{Segment: geom.Seg(v[0], v[1], v[2], v[3]), Min: v[4], Max: v[5]})
		}
	}
	return o, nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
