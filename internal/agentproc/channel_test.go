package agentproc

import (
	"context"
	"io"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/harp-lab/maze-game/internal/protocol"
)

func pipes(t *testing.T, opts Options) (*Channel, *io.PipeReader, *io.PipeWriter) {
	t.Helper()
	obsR, obsW := io.Pipe()
	cmdR, cmdW := io.Pipe()
	return New(obsW, cmdR, opts), obsR, cmdW
}

func collect(t *testing.T, c *Channel, n int) []string {
	t.Helper()
	var got []string
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out with %d/%d commands: %q", len(got), n, got)
		}
		if l, ok := c.NextCommand(); ok {
			got = append(got, l)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	return got
}

func TestChannel_ObserveAndCommands(t *testing.T) {
	c, obsR, cmdW := pipes(t, Options{Name: "green"})

	if _, ok := c.NextCommand(); ok {
		t.Fatalf("expected empty command queue")
	}

	first := make(chan protocol.Observation, 1)
	end := make(chan error, 1)
	go func() {
		rd := protocol.NewObservationReader(obsR)
		for {
			o, err := rd.Next()
			if err != nil {
				end <- err
				return
			}
			first <- o
		}
	}()

	w := protocol.NewObservation(1.5, 2.5, 3)
	w.Coin(4.5, 4.5)
	c.Observe(w.Bytes())
	select {
	case o := <-first:
		if o.X != 1.5 || o.Y != 2.5 || o.CoinsHeld != 3 || len(o.Coins) != 1 {
			t.Fatalf("unexpected observation %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("observation not delivered")
	}

	go func() { _, _ = io.WriteString(cmdW, "toward 1 2\r\n\n   \nhimynameis bob\n") }()
	if got, want := collect(t, c, 2), []string{"toward 1 2", "himynameis bob"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("commands: got %q want %q", got, want)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-end:
		if err != io.EOF {
			t.Fatalf("expected clean close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close line not delivered")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestChannel_SmallCommandQueueKeepsOrder(t *testing.T) {
	c, obsR, cmdW := pipes(t, Options{CmdQueue: 2})
	go func() { _, _ = io.Copy(io.Discard, obsR) }()
	defer c.Close()

	var want []string
	for i := 0; i < 10; i++ {
		want = append(want, protocol.Toward(float64(i), 0.5))
	}
	go func() {
		for _, l := range want {
			_, _ = io.WriteString(cmdW, l+"\n")
		}
	}()
	if got := collect(t, c, len(want)); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands: got %q want %q", got, want)
	}
}

func TestChannel_BrokenInput(t *testing.T) {
	c, obsR, _ := pipes(t, Options{})
	_ = obsR.Close()

	c.Observe([]byte("bot 0.5 0.5 0\n\n"))
	deadline := time.Now().Add(2 * time.Second)
	for !c.Broken() {
		if time.Now().After(deadline) {
			t.Fatalf("channel never marked broken")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 10; i++ {
		c.Observe([]byte("bot 0.5 0.5 0\n\n"))
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStart_Cat(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	c, err := Start(context.Background(), "cat", Options{Name: "echo", CloseGrace: 2 * time.Second})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Observe([]byte("toward 3 4\n\n"))
	if got := collect(t, c, 1); got[0] != "toward 3 4" {
		t.Fatalf("unexpected echo %q", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStart_Errors(t *testing.T) {
	if _, err := Start(context.Background(), "   ", Options{}); err == nil {
		t.Fatalf("expected error for empty command line")
	}
	if _, err := Start(context.Background(), "/nonexistent/maze-agent --x", Options{}); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
