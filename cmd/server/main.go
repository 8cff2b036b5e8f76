package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ttacon/chalk"

	"github.com/harp-lab/maze-game/internal/agentproc"
	"github.com/harp-lab/maze-game/internal/frames"
	"github.com/harp-lab/maze-game/internal/persistence/indexdb"
	persistlog "github.com/harp-lab/maze-game/internal/persistence/log"
	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/sim/maze"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
	"github.com/harp-lab/maze-game/internal/transport/observer"
)

func main() {
	os.Exit(run())
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <agent-cmd> [<agent-cmd>]\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func run() int {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "observer http listen address (empty to disable)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		mazePath   = flag.String("maze", "", "maze file (default: <configs>/mazes/0.maze)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", -1, "override the tuning seed (negative keeps it)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite results index")
		logLevel   = flag.String("log_level", "info", "debug|info|warn|error")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return 2
	}
	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -log_level: %v\n", err)
		return 2
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "server",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           lvl,
	})

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			return fatal(logger, "load tuning", err)
		}
		logger.Warn("tuning not found; using defaults", "path", tp)
		tune = tuning.Defaults()
	}
	if *seed >= 0 {
		tune.Seed = *seed
	}

	mp := strings.TrimSpace(*mazePath)
	if mp == "" {
		mp = filepath.Join(*configDir, "mazes", "0.maze")
	}
	mz, err := maze.LoadFile(mp, tune.Arena.Width, tune.Arena.Height)
	if err != nil {
		return fatal(logger, "load maze", err)
	}

	matchID := uuid.NewString()
	matchDir := filepath.Join(*dataDir, "matches")
	if err := os.MkdirAll(matchDir, 0o755); err != nil {
		return fatal(logger, "data dir", err)
	}
	logger.Info("match", "id", matchID, "maze", mp, "seed", tune.Seed, "ticks", tune.MatchTicks())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sides := []protocol.Side{protocol.Green, protocol.Red}
	var (
		chans  []*agentproc.Channel
		ctls   []arena.Controller
		agents []indexdb.AgentInfo
	)
	closeAgents := func() {
		for i, ch := range chans {
			if err := ch.Close(); err != nil {
				logger.Warn("agent exit", "side", sides[i], "err", err)
			}
		}
		chans = nil
	}
	for i, line := range flag.Args() {
		ch, err := agentproc.Start(ctx, line, agentproc.Options{
			Name:     string(sides[i]),
			ObsQueue: tune.Queues.Observations,
			CmdQueue: tune.Queues.Commands,
			Logger:   logger.WithPrefix("agent"),
		})
		if err != nil {
			closeAgents()
			return fatal(logger, "start agent", err)
		}
		chans = append(chans, ch)
		ctls = append(ctls, ch)
		agents = append(agents, indexdb.AgentInfo{Side: sides[i], Command: line})
	}

	m, err := arena.New(arena.NewConfig(tune), mz.All(), ctls, logger.WithPrefix("arena"))
	if err != nil {
		closeAgents()
		return fatal(logger, "arena", err)
	}

	// Frame pipeline: recorder first, then live viewers.
	q := frames.NewQueue(tune.Queues.Frames, time.Duration(tune.Queues.HandoffTimeoutMs)*time.Millisecond)
	disp := frames.NewDispatcher(q, logger.WithPrefix("frames"))
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = string(a.Side)
	}
	frameLog := persistlog.NewFrameLog(matchDir, persistlog.FrameHeader{
		Version:    persistlog.FrameLogVersion,
		MatchID:    matchID,
		Width:      tune.Arena.Width,
		Height:     tune.Arena.Height,
		TickRateHz: tune.TickRateHz,
		Seed:       tune.Seed,
		Agents:     names,
		Walls:      m.StaticWalls(),
		Tuning:     tune,
	})
	disp.Add("framelog", frameLog)

	var obsSrv *observer.Server
	var httpSrv *http.Server
	if a := strings.TrimSpace(*addr); a != "" {
		obsSrv = observer.NewServer(observer.Bootstrap{
			MatchID:    matchID,
			Width:      tune.Arena.Width,
			Height:     tune.Arena.Height,
			TickRateHz: tune.TickRateHz,
			MatchTicks: tune.MatchTicks(),
			Seed:       tune.Seed,
			Agents:     names,
			Walls:      m.StaticWalls(),
		}, logger.WithPrefix("observer"))
		disp.Add("observer", obsSrv)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.sqlite"))
		if err != nil {
			closeAgents()
			return fatal(logger, "open index", err)
		}
		err = idx.BeginMatch(ctx, indexdb.MatchInfo{
			ID:         matchID,
			StartedAt:  time.Now(),
			Seed:       tune.Seed,
			Width:      tune.Arena.Width,
			Height:     tune.Arena.Height,
			MatchTicks: tune.MatchTicks(),
			FramesPath: frameLog.Path(),
			Tuning:     tune,
			Agents:     agents,
		})
		if err != nil {
			closeAgents()
			_ = idx.Close()
			return fatal(logger, "index match", err)
		}
	}

	if obsSrv != nil {
		mux := http.NewServeMux()
		mux.Handle("/v1/observer/", obsSrv.Handler())
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.HandleFunc("/metrics", metricsHandler(matchID, m, q, obsSrv, idx))
		httpSrv = &http.Server{
			Addr:              *addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("listening", "addr", *addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observer http", "err", err)
			}
		}()
	}

	tickLog := persistlog.NewTickLogger(matchDir, matchID)
	var idxTicks arena.TickLogger
	if idx != nil {
		idxTicks = idx.TickLogger(matchID)
	}
	m.SetTickLogger(multiTickLogger{a: tickLog, b: idxTicks})
	m.SetFrameSink(q)
	disp.Start()

	runErr := m.Run(ctx)

	// Agents first, then the frame pipeline, then the index.
	closeAgents()
	q.Close()
	if err := disp.Wait(); err != nil {
		logger.Error("frame pipeline", "err", err)
	}
	if err := tickLog.Close(); err != nil {
		logger.Warn("tick log close", "err", err)
	}
	res := m.Result()
	if idx != nil {
		status := indexdb.StatusFinished
		if runErr != nil {
			status = indexdb.StatusFailed
		}
		idx.FinishMatch(matchID, status, res)
		if st := idx.Stats(); st.DropTickTotal > 0 {
			logger.Warn("index dropped ticks", "count", st.DropTickTotal)
		}
		if err := idx.Close(); err != nil {
			logger.Warn("index close", "err", err)
		}
	}
	if httpSrv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = httpSrv.Shutdown(sctx)
		scancel()
	}

	printResult(os.Stdout, matchID, res)
	logger.Info("frames written", "path", frameLog.Path())
	if runErr != nil {
		return fatal(logger, "match", runErr)
	}
	return 0
}

func fatal(logger *log.Logger, what string, err error) int {
	logger.Error(what, "err", err)
	fmt.Fprintln(os.Stderr, chalk.Red.Color(what+": "+err.Error()))
	return 1
}

type multiTickLogger struct {
	a arena.TickLogger
	b arena.TickLogger
}

func (m multiTickLogger) WriteTick(entry arena.TickLogEntry) error {
	var errs []error
	if m.a != nil {
		errs = append(errs, m.a.WriteTick(entry))
	}
	if m.b != nil {
		errs = append(errs, m.b.WriteTick(entry))
	}
	return errors.Join(errs...)
}
