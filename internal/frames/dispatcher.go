package frames

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/harp-lab/maze-game/internal/sim/arena"
)

// Sink consumes frames in tick order.
type Sink interface {
	WriteFrame(f arena.Frame) error
	Close() error
}

type namedSink struct {
	name string
	Sink
	failed bool
}

// Dispatcher drains a Queue on its own goroutine and fans every frame out to
// its sinks. A sink that fails is closed and skipped from then on.
type Dispatcher struct {
	q     *Queue
	log   *log.Logger
	sinks []*namedSink

	done chan struct{}
	errs []error
}

func NewDispatcher(q *Queue, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{q: q, log: logger, done: make(chan struct{})}
}

// Add registers a sink. It must be called before Start.
func (d *Dispatcher) Add(name string, s Sink) {
	d.sinks = append(d.sinks, &namedSink{name: name, Sink: s})
}

func (d *Dispatcher) Start() { go d.run() }

func (d *Dispatcher) run() {
	defer close(d.done)
	for f := range d.q.Frames() {
		for _, s := range d.sinks {
			if s.failed {
				continue
			}
			if err := s.WriteFrame(f); err != nil {
				s.failed = true
				d.errs = append(d.errs, fmt.Errorf("%s: tick %d: %w", s.name, f.Tick, err))
				d.log.Error("frame sink failed", "sink", s.name, "tick", f.Tick, "err", err)
				if cerr := s.Close(); cerr != nil {
					d.log.Warn("frame sink close", "sink", s.name, "err", cerr)
				}
			}
		}
	}
	for _, s := range d.sinks {
		if s.failed {
			continue
		}
		if err := s.Close(); err != nil {
			d.errs = append(d.errs, fmt.Errorf("%s: close: %w", s.name, err))
		}
	}
}

// Wait blocks until the queue is closed and drained and every sink closed. It
// returns the sink failures, if any.
func (d *Dispatcher) Wait() error {
	<-d.done
	return errors.Join(d.errs...)
}
