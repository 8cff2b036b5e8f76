// Package arena is the authoritative maze simulation: entities, collision
// rules, sensing and the fixed-cadence match loop.
package arena

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
)

type Config struct {
	Width, Height int
	MatchTicks    int
	TickRateHz    int
	Seed          int64

	// Pacing. A zero FrameBudget runs ticks back to back.
	FrameBudget time.Duration
	FrameMargin time.Duration
	BootGrace   time.Duration

	AgentRadius float64
	MaxSpeed    float64 // per tick
	Accel       float64 // per tick
	Bounce      float64
	LogEntries  int
	LogWidth    int

	FlagRadius       float64
	CoinRadius       float64
	HomeRadius       float64
	Coins            int
	CoinRespawnTicks int
	FlagFadeTicks    int

	TempWallCost     int
	TempWallLifetime int
	PermissiveBlock  bool

	SenseRadius float64
	WallRadius  int
	LineAngles  bool
}

func NewConfig(t tuning.Tuning) Config {
	maxv := t.MaxSpeedPerTick()
	return Config{
		Width:            t.Arena.Width,
		Height:           t.Arena.Height,
		MatchTicks:       t.MatchTicks(),
		TickRateHz:       t.TickRateHz,
		Seed:             t.Seed,
		FrameBudget:      time.Duration(t.FrameMs) * time.Millisecond,
		FrameMargin:      time.Duration(t.FrameMarginMs) * time.Millisecond,
		BootGrace:        time.Duration(t.BootGraceMs) * time.Millisecond,
		AgentRadius:      t.Agent.Radius,
		MaxSpeed:         maxv,
		Accel:            maxv / t.Agent.AccelDivisor,
		Bounce:           t.Agent.Bounce,
		LogEntries:       t.Agent.LogEntries,
		LogWidth:         t.Agent.LogWidth,
		FlagRadius:       t.Objects.FlagRadius,
		CoinRadius:       t.Objects.CoinRadius,
		HomeRadius:       t.Objects.HomeRadius,
		Coins:            t.Objects.Coins,
		CoinRespawnTicks: t.Objects.CoinRespawnTicks,
		FlagFadeTicks:    t.Objects.FlagFadeTicks,
		TempWallCost:     t.TempWalls.Cost,
		TempWallLifetime: t.TempWalls.LifetimeTicks,
		PermissiveBlock:  t.TempWalls.PermissiveBlock,
		SenseRadius:      t.Sense.Radius,
		WallRadius:       t.Sense.WallRadius,
		LineAngles:       t.Sense.LineAngles,
	}
}

// Controller is the simulation's view of an agent process. Neither method
// may block for long: Observe hands off one observation block, NextCommand
// returns the next queued line if there is one.
type Controller interface {
	Observe(block []byte)
	NextCommand() (string, bool)
}

// FrameSink receives one frame per tick, in order. An error is fatal.
type FrameSink interface {
	Push(f Frame) error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type State int32

const (
	Initializing State = iota
	Running
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Match is a single-threaded authoritative simulation.
// All state must be accessed only from the goroutine running Run or Step.
type Match struct {
	cfg    Config
	logger *log.Logger
	rng    *rand.Rand

	walls      *wallIndex
	staticWall []geom.Segment
	objs       *objIndex
	maxObjR    float64

	agents    []*Agent
	flags     []*Flag
	coins     []*Coin
	homes     []*Home
	tempWalls []*TempWall

	ids     int
	tick    uint64
	state   atomic.Int32
	applied []AppliedCommand

	// Optional (may be nil).
	sink       FrameSink
	tickLogger TickLogger
}

// New lays out a one- or two-agent match over walls, which must include the
// arena boundary. The first controller plays green, the second red.
func New(cfg Config, walls []geom.Segment, ctls []Controller, logger *log.Logger) (*Match, error) {
	if len(ctls) < 1 || len(ctls) > 2 {
		return nil, fmt.Errorf("arena: need 1 or 2 agents, got %d", len(ctls))
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	m := &Match{
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		walls:   newWallIndex(cfg.Width, cfg.Height),
		objs:    newObjIndex(),
		maxObjR: max(cfg.FlagRadius, cfg.CoinRadius, cfg.HomeRadius),
	}
	// Rejected duplicates do not use up an id.
	for _, s := range walls {
		w := &Wall{id: m.ids + 1, Segment: s}
		if m.walls.insert(w) {
			m.ids++
			m.staticWall = append(m.staticWall, s)
		}
	}

	far := func(v int) float64 { return float64(v) - 0.5 }
	m.agents = append(m.agents, newAgent(m.nextID(), protocol.Green, 0.5, 0.5, cfg, ctls[0]))
	m.homes = append(m.homes, m.newHome(protocol.Green, 0.5, 0.5))
	if len(ctls) == 1 {
		m.flags = append(m.flags, m.newFlag(protocol.Green, far(cfg.Width), far(cfg.Height), 0))
	} else {
		m.flags = append(m.flags, m.newFlag(protocol.Green, 0.5, 0.5, 0))
		m.agents = append(m.agents, newAgent(m.nextID(), protocol.Red, far(cfg.Width), far(cfg.Height), cfg, ctls[1]))
		m.homes = append(m.homes, m.newHome(protocol.Red, far(cfg.Width), far(cfg.Height)))
		m.flags = append(m.flags, m.newFlag(protocol.Red, far(cfg.Width), far(cfg.Height), 10))
	}
	for i := 0; i < cfg.Coins; i++ {
		c := &Coin{body: body{id: m.nextID(), Circle: geom.Circle{R: cfg.CoinRadius}}}
		c.X, c.Y = m.randomTileCentre()
		c.Phase = m.rng.Intn(9)
		m.coins = append(m.coins, c)
	}

	for _, h := range m.homes {
		if err := m.objs.insert(h); err != nil {
			return nil, err
		}
	}
	for _, f := range m.flags {
		if err := m.objs.insert(f); err != nil {
			return nil, err
		}
	}
	for _, c := range m.coins {
		if err := m.objs.insert(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Match) nextID() int {
	m.ids++
	return m.ids
}

func (m *Match) newHome(side protocol.Side, x, y float64) *Home {
	return &Home{body: body{id: m.nextID(), Circle: geom.Circle{X: x, Y: y, R: m.cfg.HomeRadius}}, Side: side}
}

func (m *Match) newFlag(side protocol.Side, x, y float64, phase int) *Flag {
	return &Flag{body: body{id: m.nextID(), Circle: geom.Circle{X: x, Y: y, R: m.cfg.FlagRadius}, Phase: phase}, Side: side}
}

func (m *Match) randomTileCentre() (float64, float64) {
	return float64(m.rng.Intn(m.cfg.Width)) + 0.5, float64(m.rng.Intn(m.cfg.Height)) + 0.5
}

// respawnCoin hides c at a fresh random tile centre until its delay runs out.
func (m *Match) respawnCoin(c *Coin) {
	c.X, c.Y = m.randomTileCentre()
	c.Phase = -m.cfg.CoinRespawnTicks
	// Bounds are valid by construction; insert only fails on a zero radius.
	if err := m.objs.update(c); err != nil {
		m.logger.Error("coin reindex", "id", c.id, "err", err)
	}
}

func (m *Match) SetFrameSink(s FrameSink)    { m.sink = s }
func (m *Match) SetTickLogger(l TickLogger)  { m.tickLogger = l }
func (m *Match) Config() Config              { return m.cfg }
func (m *Match) State() State                { return State(m.state.Load()) }
func (m *Match) CurrentTick() uint64         { return m.tick }
func (m *Match) Agents() []*Agent            { return m.agents }
func (m *Match) StaticWalls() []geom.Segment { return m.staticWall }

// Run plays the match to the end at the configured cadence. It returns the
// first fatal error, leaving the match Failed.
func (m *Match) Run(ctx context.Context) error {
	m.state.Store(int32(Running))
	if err := sleepCtx(ctx, m.cfg.BootGrace); err != nil {
		return m.fail(err)
	}
	step := max(m.cfg.MatchTicks/20, 1)
	for m.tick < uint64(m.cfg.MatchTicks) {
		if err := ctx.Err(); err != nil {
			return m.fail(err)
		}
		start := time.Now()
		if err := m.Step(); err != nil {
			return m.fail(err)
		}
		if m.tick%uint64(step) == 0 {
			m.logger.Info("progress", "tick", m.tick, "pct", int(m.tick*100/uint64(m.cfg.MatchTicks)))
		}
		if err := m.pace(ctx, start); err != nil {
			return m.fail(err)
		}
	}
	m.state.Store(int32(Finished))
	return nil
}

func (m *Match) fail(err error) error {
	m.state.Store(int32(Failed))
	m.logger.Error("match failed", "tick", m.tick, "err", err)
	return err
}

// pace sleeps off most of the tick budget, keeping a margin, then spins to
// the deadline.
func (m *Match) pace(ctx context.Context, start time.Time) error {
	if m.cfg.FrameBudget <= 0 {
		return nil
	}
	deadline := start.Add(m.cfg.FrameBudget)
	if rem := time.Until(deadline); rem > m.cfg.FrameMargin+50*time.Millisecond {
		if err := sleepCtx(ctx, rem-m.cfg.FrameMargin); err != nil {
			return err
		}
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Step advances the match by one tick without pacing.
func (m *Match) Step() error {
	m.applied = nil
	for _, a := range m.agents {
		block, seen := m.observe(a)
		a.seenWalls = seen
		a.ctl.Observe(block)
		if err := m.drainCommands(a); err != nil {
			return err
		}
		a.move()
		if err := m.resolve(a); err != nil {
			return err
		}
	}

	for _, tw := range m.advance() {
		m.walls.remove(tw)
		m.logger.Debug("twall expired", "tick", m.tick, "id", tw.id)
	}

	if m.sink != nil {
		if err := m.sink.Push(m.frame()); err != nil {
			return err
		}
	}
	if m.tickLogger != nil {
		entry := TickLogEntry{Tick: m.tick, Commands: m.applied, Digest: m.Digest()}
		if err := m.tickLogger.WriteTick(entry); err != nil {
			m.logger.Warn("tick log", "tick", m.tick, "err", err)
		}
	}
	m.tick++
	return nil
}

// resolve runs collisions for a: walls around its tile first, then nearby
// objects by id.
func (m *Match) resolve(a *Agent) error {
	tx, ty := m.tileOf(a.X, a.Y)
	for _, w := range m.walls.near(tx, ty) {
		if err := m.visit(w, a); err != nil {
			return err
		}
	}
	for _, o := range m.objs.near(a.X, a.Y, a.R+m.maxObjR+1e-9) {
		switch v := o.(type) {
		case *Flag:
			if v.Carried() {
				continue
			}
		case *Coin:
			if !v.Visible() {
				continue
			}
		}
		if err := m.visit(o, a); err != nil {
			return err
		}
	}
	return nil
}

// advance ages temporary walls, coins and flags. Expired walls are returned
// for the caller to remove.
func (m *Match) advance() []*TempWall {
	var expired []*TempWall
	kept := m.tempWalls[:0]
	for _, tw := range m.tempWalls {
		if tw.tick() {
			expired = append(expired, tw)
			continue
		}
		kept = append(kept, tw)
	}
	m.tempWalls = kept
	for _, c := range m.coins {
		c.advance()
	}
	for _, f := range m.flags {
		f.advance(m.cfg.FlagFadeTicks)
	}
	return expired
}

type Score struct {
	Side       protocol.Side
	Name       string
	Flags      int
	CoinsHeld  int
	CoinsTotal int
}

// Result summarizes the match. Winner is an index into Scores, or -1 for a
// draw.
type Result struct {
	Ticks  uint64
	Winner int
	Scores []Score
}

func (m *Match) Result() Result {
	r := Result{Ticks: m.tick, Winner: 0}
	for _, a := range m.agents {
		r.Scores = append(r.Scores, Score{Side: a.Side, Name: a.Name, Flags: a.Flags, CoinsHeld: a.CoinsHeld, CoinsTotal: a.CoinsTotal})
	}
	if len(r.Scores) < 2 {
		return r
	}
	g, red := r.Scores[0], r.Scores[1]
	switch {
	case g.Flags != red.Flags:
		if red.Flags > g.Flags {
			r.Winner = 1
		}
	case g.CoinsTotal != red.CoinsTotal:
		if red.CoinsTotal > g.CoinsTotal {
			r.Winner = 1
		}
	default:
		r.Winner = -1
	}
	return r
}
