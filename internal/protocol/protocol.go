// Package protocol is the line protocol spoken between the arena and agent
// processes over stdin/stdout.
//
// The arena writes one observation block per tick, terminated by an empty
// line. Agents answer with zero or more command lines.
package protocol

// Observation line tags.
const (
	TagBot       = "bot"
	TagWall      = "wall"
	TagTempWall  = "twall"
	TagGreenFlag = "greenflag"
	TagRedFlag   = "redflag"
	TagCoin      = "coin"
	TagOpponent  = "opponent"
	TagLineAngle = "lineangle"
)

// Command verbs.
const (
	VerbToward     = "toward"
	VerbBlock      = "block"
	VerbHiMyNameIs = "himynameis"
	VerbComment    = "comment"
)

// ControlClose is the final line an agent receives before its stdin closes.
const ControlClose = "close"

// Side names an agent's team. The first agent is green, the second red.
type Side string

const (
	Green Side = "green"
	Red   Side = "red"
)

// FlagTag returns the observation tag of this side's flag.
func (s Side) FlagTag() string {
	if s == Red {
		return TagRedFlag
	}
	return TagGreenFlag
}
