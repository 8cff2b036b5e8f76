// Package frames carries per-tick frames from the simulation goroutine to the
// consumers that record and stream them.
package frames

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/harp-lab/maze-game/internal/sim/arena"
)

var (
	ErrBackpressure = errors.New("frame queue backpressure")
	ErrClosed       = errors.New("frame queue closed")
)

// Queue is a bounded single-producer single-consumer hand-off. Push never
// drops: it spins on a full queue until the timeout, then fails.
type Queue struct {
	ch      chan arena.Frame
	timeout time.Duration
	closed  atomic.Bool
	pushed  atomic.Uint64
	spins   atomic.Uint64
}

func NewQueue(size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan arena.Frame, size), timeout: timeout}
}

// Push implements arena.FrameSink.
func (q *Queue) Push(f arena.Frame) error {
	if q.closed.Load() {
		return ErrClosed
	}
	var deadline time.Time
	for {
		select {
		case q.ch <- f:
			q.pushed.Add(1)
			return nil
		default:
		}
		now := time.Now()
		if deadline.IsZero() {
			deadline = now.Add(q.timeout)
		} else if now.After(deadline) {
			return fmt.Errorf("%w: tick %d waited %s", ErrBackpressure, f.Tick, q.timeout)
		}
		q.spins.Add(1)
		runtime.Gosched()
	}
}

// Close ends the stream. Only the producer may call it, after its last Push.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

func (q *Queue) Frames() <-chan arena.Frame { return q.ch }

type Stats struct {
	Pushed uint64
	Spins  uint64
	Queued int
}

func (q *Queue) Stats() Stats {
	return Stats{Pushed: q.pushed.Load(), Spins: q.spins.Load(), Queued: len(q.ch)}
}
