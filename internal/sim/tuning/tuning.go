package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Arena ArenaTuning `yaml:"arena"`

	TickRateHz    int   `yaml:"tick_rate_hz"`
	MatchSeconds  int   `yaml:"match_seconds"`
	FrameMs       int   `yaml:"frame_ms"`
	FrameMarginMs int   `yaml:"frame_margin_ms"`
	BootGraceMs   int   `yaml:"boot_grace_ms"`
	Seed          int64 `yaml:"seed"`

	Agent     AgentTuning    `yaml:"agent"`
	Objects   ObjectTuning   `yaml:"objects"`
	TempWalls TempWallTuning `yaml:"temp_walls"`
	Sense     SenseTuning    `yaml:"sense"`
	Queues    QueueTuning    `yaml:"queues"`
}

type ArenaTuning struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type AgentTuning struct {
	Radius       float64 `yaml:"radius"`
	MaxSpeed     float64 `yaml:"max_speed"` // tiles per second
	AccelDivisor float64 `yaml:"accel_divisor"`
	Bounce       float64 `yaml:"bounce"`
	LogEntries   int     `yaml:"log_entries"`
	LogWidth     int     `yaml:"log_width"`
}

type ObjectTuning struct {
	FlagRadius       float64 `yaml:"flag_radius"`
	CoinRadius       float64 `yaml:"coin_radius"`
	HomeRadius       float64 `yaml:"home_radius"`
	Coins            int     `yaml:"coins"`
	CoinRespawnTicks int     `yaml:"coin_respawn_ticks"`
	FlagFadeTicks    int     `yaml:"flag_fade_ticks"`
}

type TempWallTuning struct {
	Cost            int  `yaml:"cost"`
	LifetimeTicks   int  `yaml:"lifetime_ticks"`
	PermissiveBlock bool `yaml:"permissive_block"`
}

type SenseTuning struct {
	Radius     float64 `yaml:"radius"`
	WallRadius int     `yaml:"wall_radius"`
	LineAngles bool    `yaml:"line_angles"`
}

type QueueTuning struct {
	Observations     int `yaml:"observations"`
	Commands         int `yaml:"commands"`
	Frames           int `yaml:"frames"`
	HandoffTimeoutMs int `yaml:"handoff_timeout_ms"`
}

func Defaults() Tuning {
	return Tuning{
		Arena:         ArenaTuning{Width: 11, Height: 11},
		TickRateHz:    18,
		MatchSeconds:  10,
		FrameMs:       600,
		FrameMarginMs: 75,
		BootGraceMs:   250,
		Seed:          1,
		Agent: AgentTuning{
			Radius:       0.26,
			MaxSpeed:     2.75,
			AccelDivisor: 5.5,
			Bounce:       1.35,
			LogEntries:   16,
			LogWidth:     24,
		},
		Objects: ObjectTuning{
			FlagRadius:       0.42,
			CoinRadius:       0.42,
			HomeRadius:       0.26,
			Coins:            20,
			CoinRespawnTicks: 90,
			FlagFadeTicks:    14,
		},
		TempWalls: TempWallTuning{Cost: 3, LifetimeTicks: 54, PermissiveBlock: true},
		Sense:     SenseTuning{Radius: 5, WallRadius: 8, LineAngles: true},
		Queues: QueueTuning{
			Observations:     4,
			Commands:         64,
			Frames:           32,
			HandoffTimeoutMs: 2000,
		},
	}
}

// MatchTicks is the number of simulated ticks in one match.
func (t Tuning) MatchTicks() int { return t.MatchSeconds * t.TickRateHz }

// MaxSpeedPerTick is the agent speed cap in tiles per tick.
func (t Tuning) MaxSpeedPerTick() float64 { return t.Agent.MaxSpeed / float64(t.TickRateHz) }

// Load reads path over Defaults(): keys absent from the file keep their
// default. The raw document is checked against the embedded schema before the
// semantic checks in Validate.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := checkSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate checks relations the schema cannot express.
func (t Tuning) Validate() error {
	var errs []error
	if t.Arena.Width < 1 || t.Arena.Height < 1 {
		errs = append(errs, fmt.Errorf("arena must be at least 1x1, got %dx%d", t.Arena.Width, t.Arena.Height))
	}
	if t.TickRateHz <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate_hz must be positive"))
	}
	if t.MatchTicks() <= 0 {
		errs = append(errs, fmt.Errorf("match_seconds must be positive"))
	}
	if t.FrameMs < 0 || t.FrameMarginMs < 0 || t.BootGraceMs < 0 {
		errs = append(errs, fmt.Errorf("frame_ms, frame_margin_ms and boot_grace_ms must be >= 0"))
	}
	if t.FrameMs > 0 && t.FrameMarginMs >= t.FrameMs {
		errs = append(errs, fmt.Errorf("frame_margin_ms (%d) must be below frame_ms (%d)", t.FrameMarginMs, t.FrameMs))
	}
	if t.Agent.Radius <= 0 || t.Agent.Radius >= 0.5 {
		errs = append(errs, fmt.Errorf("agent.radius must be in (0, 0.5)"))
	}
	if t.Agent.MaxSpeed <= 0 || t.Agent.AccelDivisor <= 0 || t.Agent.Bounce <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_speed, accel_divisor and bounce must be positive"))
	}
	if t.Agent.LogEntries < 3 || t.Agent.LogWidth < 1 {
		errs = append(errs, fmt.Errorf("agent.log_entries must be >= 3 and log_width >= 1"))
	}
	if t.Objects.Coins < 0 || t.Objects.CoinRespawnTicks < 1 || t.Objects.FlagFadeTicks < 0 {
		errs = append(errs, fmt.Errorf("objects: coins >= 0, coin_respawn_ticks >= 1, flag_fade_ticks >= 0"))
	}
	if t.TempWalls.Cost < 0 || t.TempWalls.LifetimeTicks < 1 {
		errs = append(errs, fmt.Errorf("temp_walls: cost >= 0, lifetime_ticks >= 1"))
	}
	if t.Sense.Radius <= 0 || t.Sense.WallRadius < 1 {
		errs = append(errs, fmt.Errorf("sense: radius > 0, wall_radius >= 1"))
	}
	q := t.Queues
	if q.Observations < 1 || q.Commands < 1 || q.Frames < 1 || q.HandoffTimeoutMs < 1 {
		errs = append(errs, fmt.Errorf("queues: all capacities and handoff_timeout_ms must be >= 1"))
	}
	return errors.Join(errs...)
}

//go:embed tuning.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("tuning.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("tuning.schema.json")
	})
	return schema, schemaErr
}

// checkSchema validates a YAML document by round-tripping it through JSON,
// which is the value model the validator expects.
func checkSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return err
	}
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}
