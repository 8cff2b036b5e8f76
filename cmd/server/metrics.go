package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ttacon/chalk"

	"github.com/harp-lab/maze-game/internal/frames"
	"github.com/harp-lab/maze-game/internal/persistence/indexdb"
	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/transport/observer"
)

type metricsSnapshot struct {
	MatchID string
	State   arena.State
	Frames  frames.Stats
	Viewers int
	Dropped uint64
	Index   *indexdb.Stats
}

func metricsHandler(matchID string, m *arena.Match, q *frames.Queue, obs *observer.Server, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s := metricsSnapshot{
			MatchID: matchID,
			State:   m.State(),
			Frames:  q.Stats(),
			Viewers: obs.Viewers(),
			Dropped: obs.Drops(),
		}
		if idx != nil {
			st := idx.Stats()
			s.Index = &st
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, s)
	}
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(w io.Writer, s metricsSnapshot) {
	fmt.Fprintf(w, "# HELP maze_match_state Match state (0 initializing, 1 running, 2 finished, 3 failed).\n")
	fmt.Fprintf(w, "# TYPE maze_match_state gauge\n")
	fmt.Fprintf(w, "maze_match_state{match=%q} %d\n", s.MatchID, int32(s.State))

	fmt.Fprintf(w, "# HELP maze_frames_pushed_total Frames handed to the consumer pipeline.\n")
	fmt.Fprintf(w, "# TYPE maze_frames_pushed_total counter\n")
	fmt.Fprintf(w, "maze_frames_pushed_total{match=%q} %d\n", s.MatchID, s.Frames.Pushed)

	fmt.Fprintf(w, "# HELP maze_frames_spins_total Hand-off retries on a full frame queue.\n")
	fmt.Fprintf(w, "# TYPE maze_frames_spins_total counter\n")
	fmt.Fprintf(w, "maze_frames_spins_total{match=%q} %d\n", s.MatchID, s.Frames.Spins)

	fmt.Fprintf(w, "# HELP maze_frames_queue_depth Frames waiting for the dispatcher.\n")
	fmt.Fprintf(w, "# TYPE maze_frames_queue_depth gauge\n")
	fmt.Fprintf(w, "maze_frames_queue_depth{match=%q} %d\n", s.MatchID, s.Frames.Queued)

	fmt.Fprintf(w, "# HELP maze_observer_viewers Connected viewers.\n")
	fmt.Fprintf(w, "# TYPE maze_observer_viewers gauge\n")
	fmt.Fprintf(w, "maze_observer_viewers{match=%q} %d\n", s.MatchID, s.Viewers)

	fmt.Fprintf(w, "# HELP maze_observer_dropped_total Frames dropped for slow viewers.\n")
	fmt.Fprintf(w, "# TYPE maze_observer_dropped_total counter\n")
	fmt.Fprintf(w, "maze_observer_dropped_total{match=%q} %d\n", s.MatchID, s.Dropped)

	if s.Index == nil {
		return
	}
	fmt.Fprintf(w, "# HELP maze_index_queue_depth Results index writer backlog.\n")
	fmt.Fprintf(w, "# TYPE maze_index_queue_depth gauge\n")
	fmt.Fprintf(w, "maze_index_queue_depth{match=%q} %d\n", s.MatchID, s.Index.QueueDepth)

	fmt.Fprintf(w, "# HELP maze_index_dropped_ticks_total Tick rows not indexed because the writer was behind.\n")
	fmt.Fprintf(w, "# TYPE maze_index_dropped_ticks_total counter\n")
	fmt.Fprintf(w, "maze_index_dropped_ticks_total{match=%q} %d\n", s.MatchID, s.Index.DropTickTotal)
}

// printResult writes the end-of-match banner.
func printResult(w io.Writer, matchID string, res arena.Result) {
	fmt.Fprintln(w, chalk.Bold.TextStyle(fmt.Sprintf("match %s: %d ticks", matchID, res.Ticks)))
	for _, s := range res.Scores {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "  %-5s %-16s flags=%d coins=%d/%d\n", s.Side, name, s.Flags, s.CoinsHeld, s.CoinsTotal)
	}
	switch {
	case res.Winner < 0 || res.Winner >= len(res.Scores):
		fmt.Fprintln(w, chalk.Yellow.Color("draw"))
	case res.Scores[res.Winner].Side == protocol.Red:
		fmt.Fprintln(w, chalk.Red.Color("winner: red "+res.Scores[res.Winner].Name))
	default:
		fmt.Fprintln(w, chalk.Green.Color("winner: green "+res.Scores[res.Winner].Name))
	}
}
