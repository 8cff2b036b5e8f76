package arena

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/geom"
)

func TestAgentBounce(t *testing.T) {
	a := newAgent(1, protocol.Green, 0.2, 0.5, testConfig(), nil)
	a.lastDX = -0.1
	a.V = 0.1
	a.A = math.Pi

	if err := a.bounce(geom.Seg(0, 0, 0, 1), 1.35); err != nil {
		t.Fatalf("bounce: %v", err)
	}
	if math.Abs(a.X-0.3) > 1e-12 || a.Y != 0.5 {
		t.Fatalf("expected move undone to (0.3,0.5), got (%v,%v)", a.X, a.Y)
	}
	if a.A != 0 {
		t.Fatalf("expected heading away from wall (0), got %v", a.A)
	}
	if math.Abs(a.V-0.135) > 1e-12 {
		t.Fatalf("expected speed 0.135, got %v", a.V)
	}
}

func TestAgentBounce_CentreOnWall(t *testing.T) {
	a := newAgent(1, protocol.Green, 0, 0.5, testConfig(), nil)
	err := a.bounce(geom.Seg(0, 0, 0, 1), 1.35)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestAgentSettlesOnTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Width, cfg.Height = 1, 1
	ctl := &script{}
	for i := 0; i < 100; i++ {
		ctl.ticks = append(ctl.ticks, []string{protocol.Toward(0.5, 0.5)})
	}
	m := newTestMatch(t, cfg, nil, ctl)
	a := m.agents[0]
	for i := 0; i < 100; i++ {
		stepN(t, m, 1)
		if d := geom.Dist(a.X, a.Y, 0.5, 0.5); d >= 0.01 {
			t.Fatalf("tick %d: drifted %v from target", i, d)
		}
	}
}

func TestAgentReachesTarget(t *testing.T) {
	ctl := &script{ticks: [][]string{{protocol.Toward(5.5, 0.5)}}}
	m := newTestMatch(t, testConfig(), nil, ctl)
	stepN(t, m, 120)
	a := m.agents[0]
	if d := geom.Dist(a.X, a.Y, 5.5, 0.5); d >= 0.01 {
		t.Fatalf("expected agent near (5.5,0.5), got (%v,%v)", a.X, a.Y)
	}
	if a.V > a.MaxV {
		t.Fatalf("speed %v above cap %v", a.V, a.MaxV)
	}
}

func TestAgentBouncesOffBoundary(t *testing.T) {
	ctl := &script{ticks: [][]string{{protocol.Toward(-5, 0.5)}}}
	m := newTestMatch(t, testConfig(), nil, ctl)
	a := m.agents[0]
	bounced := false
	for i := 0; i < 60; i++ {
		stepN(t, m, 1)
		if a.X < a.R-1e-9 {
			t.Fatalf("tick %d: agent at x=%v passed into the wall", i, a.X)
		}
		if math.Cos(a.A) > 0.9 {
			bounced = true
		}
	}
	if !bounced {
		t.Fatalf("expected at least one bounce off x=0")
	}
}

func TestAgentRingLog(t *testing.T) {
	cfg := testConfig()
	cfg.LogEntries, cfg.LogWidth = 4, 5
	a := newAgent(1, protocol.Green, 0.5, 0.5, cfg, nil)

	a.pushLog("a")
	a.pushLog("b")
	if got, want := a.Log(), []string{"a", "b", "", ""}; !reflect.DeepEqual(got, want) {
		t.Fatalf("log: got %q want %q", got, want)
	}
	a.pushLog("c")
	if got, want := a.Log(), []string{"", "b", "c", ""}; !reflect.DeepEqual(got, want) {
		t.Fatalf("log: got %q want %q", got, want)
	}
	a.pushLog("héllo wörld")
	if got, want := a.Log(), []string{"", "", "c", "héllo"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("log: got %q want %q", got, want)
	}

	snap := a.Log()
	snap[2] = "x"
	if a.Log()[2] != "c" {
		t.Fatalf("Log must return a copy")
	}
}
