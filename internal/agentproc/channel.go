// Package agentproc links the arena to agent processes over their standard
// streams: observation blocks go in on stdin, command lines come back on
// stdout.
package agentproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harp-lab/maze-game/internal/protocol"
)

type Options struct {
	Name       string
	ObsQueue   int
	CmdQueue   int
	CloseGrace time.Duration
	Logger     *log.Logger
}

func (o Options) withDefaults() Options {
	if o.ObsQueue <= 0 {
		o.ObsQueue = 4
	}
	if o.CmdQueue <= 0 {
		o.CmdQueue = 64
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Channel is one agent's link. Observe and NextCommand are called from the
// simulation goroutine only; everything else runs on the pump and reader.
type Channel struct {
	log   *log.Logger
	grace time.Duration

	obs   chan []byte
	cmds  chan string
	lines chan string
	done  chan struct{}

	w io.WriteCloser
	r io.Reader

	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error

	pumpDone  chan struct{}
	readDone  chan struct{}
	closeOnce sync.Once
	broken    atomic.Bool
}

// New wires a channel to an already running agent: w is its input, r its
// output. Close closes r when it is an io.Closer.
func New(w io.WriteCloser, r io.Reader, opts Options) *Channel {
	c := newChannel(w, r, opts)
	c.start()
	return c
}

// Start launches commandLine (split on whitespace, no shell) and wires its
// stdin and stdout. Stderr is passed through.
func Start(ctx context.Context, commandLine string, opts Options) (*Channel, error) {
	argv := strings.Fields(commandLine)
	if len(argv) == 0 {
		return nil, errors.New("agentproc: empty command line")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agentproc: stdin: %w", err)
	}
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = os.Stderr

	c := newChannel(stdin, pr, opts)
	cmd.WaitDelay = c.grace
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agentproc: start %q: %w", argv[0], err)
	}
	c.cmd = cmd
	c.exited = make(chan struct{})
	go func() {
		c.exitErr = cmd.Wait()
		_ = pw.Close()
		close(c.exited)
	}()
	c.start()
	c.log.Info("started", "pid", cmd.Process.Pid, "cmd", commandLine)
	return c, nil
}

func newChannel(w io.WriteCloser, r io.Reader, opts Options) *Channel {
	opts = opts.withDefaults()
	logger := opts.Logger
	if opts.Name != "" {
		logger = logger.With("agent", opts.Name)
	}
	return &Channel{
		log:      logger,
		grace:    opts.CloseGrace,
		obs:      make(chan []byte, opts.ObsQueue),
		cmds:     make(chan string, opts.CmdQueue),
		lines:    make(chan string),
		done:     make(chan struct{}),
		w:        w,
		r:        r,
		pumpDone: make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

func (c *Channel) start() {
	go c.read()
	go c.pump()
}

// Observe queues one observation block, spinning while the queue is full.
func (c *Channel) Observe(block []byte) {
	for {
		select {
		case c.obs <- block:
			return
		case <-c.done:
			return
		default:
			runtime.Gosched()
		}
	}
}

// NextCommand returns the oldest queued command line, if any. It never blocks.
func (c *Channel) NextCommand() (string, bool) {
	select {
	case l := <-c.cmds:
		return l, true
	default:
		return "", false
	}
}

// Broken reports whether the agent stopped accepting observations.
func (c *Channel) Broken() bool { return c.broken.Load() }

// pump owns the agent's stdin. Lines from the reader are held locally while
// the command queue is full so observations keep flowing.
func (c *Channel) pump() {
	defer close(c.pumpDone)
	lines := c.lines
	var pending []string
	for {
		var out chan string
		var next string
		if len(pending) > 0 {
			out, next = c.cmds, pending[0]
		}
		in := lines
		if len(pending) >= cap(c.cmds) {
			in = nil
		}

		select {
		case <-c.done:
			c.write([]byte(protocol.ControlClose + "\n"))
			_ = c.w.Close()
			return
		case b := <-c.obs:
			c.write(b)
		case l, ok := <-in:
			if !ok {
				lines = nil
				continue
			}
			pending = append(pending, l)
		case out <- next:
			pending = pending[1:]
		}
	}
}

func (c *Channel) write(b []byte) {
	if c.broken.Load() {
		return
	}
	if _, err := c.w.Write(b); err != nil {
		c.broken.Store(true)
		c.log.Warn("agent input closed; dropping observations", "err", err)
	}
}

// read forwards complete non-empty lines. After Close it keeps draining so the
// process never blocks on a full stdout.
func (c *Channel) read() {
	defer close(c.readDone)
	defer close(c.lines)
	sc := bufio.NewScanner(c.r)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() {
		l := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		select {
		case c.lines <- l:
		case <-c.done:
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		c.log.Warn("agent output", "err", err)
	}
}

// Close stops the pump, sends the close line, and gives the process the grace
// period to exit before killing it. It returns the process exit error, if any.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		until := time.Now().Add(c.grace)
		if !waitUntil(c.pumpDone, until) {
			c.kill()
			<-c.pumpDone
		}
		if c.cmd != nil {
			if !waitUntil(c.exited, until) {
				c.log.Warn("agent did not exit; killing")
				c.kill()
				<-c.exited
			}
			err = c.exitErr
		} else if rc, ok := c.r.(io.Closer); ok {
			_ = rc.Close()
		}
		<-c.readDone
	})
	return err
}

func (c *Channel) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.w.Close()
}

func waitUntil(ch <-chan struct{}, until time.Time) bool {
	select {
	case <-ch:
		return true
	default:
	}
	t := time.NewTimer(time.Until(until))
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
