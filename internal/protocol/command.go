package protocol

import (
	"math"
	"strconv"
	"strings"

	"github.com/harp-lab/maze-game/internal/sim/geom"
)

type CommandKind uint8

const (
	CmdToward CommandKind = iota + 1
	CmdBlock
	CmdName
	CmdComment
)

// Dir picks one edge of a tile for a block command.
type Dir byte

const (
	Left  Dir = 'l'
	Right Dir = 'r'
	Up    Dir = 'u'
	Down  Dir = 'd'
)

// Edge returns the wall segment on this side of tile (tx,ty). Up is toward
// smaller y.
func (d Dir) Edge(tx, ty int) geom.Segment {
	x, y := float64(tx), float64(ty)
	switch d {
	case Left:
		return geom.Seg(x, y, x, y+1)
	case Right:
		return geom.Seg(x+1, y, x+1, y+1)
	case Up:
		return geom.Seg(x, y, x+1, y)
	default:
		return geom.Seg(x, y+1, x+1, y+1)
	}
}

type Command struct {
	Kind CommandKind
	// toward
	X, Y float64
	// block
	TX, TY int
	Dir    Dir
	// himynameis / comment
	Text string
}

// Behavioral reports whether the command uses the agent's one action per tick.
func (c Command) Behavioral() bool { return c.Kind == CmdToward || c.Kind == CmdBlock }

// LogText is how the command appears in the agent's command log: the line
// itself, except comments which drop their verb.
func LogText(line string) string {
	if rest, ok := strings.CutPrefix(line, VerbComment+" "); ok {
		return rest
	}
	return line
}

// ParseCommand decodes one agent line. Anything it cannot decode is a
// violation wrapping ErrProtocol.
func ParseCommand(line string) (Command, error) {
	verb, rest, hasArg := strings.Cut(line, " ")
	switch verb {
	case VerbToward:
		f := strings.Fields(rest)
		if len(f) != 2 {
			return Command{}, violation(line, "toward takes 2 coordinates")
		}
		x, err1 := parseCoord(f[0])
		y, err2 := parseCoord(f[1])
		if err1 != nil || err2 != nil {
			return Command{}, violation(line, "bad toward coordinate")
		}
		return Command{Kind: CmdToward, X: x, Y: y}, nil

	case VerbBlock:
		f := strings.Fields(rest)
		if len(f) != 3 {
			return Command{}, violation(line, "block takes tile x, tile y and a direction")
		}
		tx, err1 := strconv.Atoi(f[0])
		ty, err2 := strconv.Atoi(f[1])
		if err1 != nil || err2 != nil {
			return Command{}, violation(line, "bad block tile")
		}
		if len(f[2]) != 1 || !strings.Contains("lrud", f[2]) {
			return Command{}, violation(line, "invalid block direction %q", f[2])
		}
		return Command{Kind: CmdBlock, TX: tx, TY: ty, Dir: Dir(f[2][0])}, nil

	// Name and comment need the separating space; their text may be empty.
	case VerbHiMyNameIs:
		if !hasArg {
			return Command{}, violation(line, "himynameis needs a name")
		}
		return Command{Kind: CmdName, Text: strings.TrimSpace(rest)}, nil

	case VerbComment:
		if !hasArg {
			return Command{}, violation(line, "comment needs text")
		}
		return Command{Kind: CmdComment, Text: rest}, nil
	}
	return Command{}, violation(line, "unrecognized command")
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// Toward formats a toward command.
func Toward(x, y float64) string {
	return VerbToward + " " + ftoa(x) + " " + ftoa(y)
}

// Block formats a block command.
func Block(tx, ty int, d Dir) string {
	return VerbBlock + " " + strconv.Itoa(tx) + " " + strconv.Itoa(ty) + " " + string(rune(d))
}

// Name formats a himynameis command.
func Name(name string) string {
	return VerbHiMyNameIs + " " + name
}
