package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harp-lab/maze-game/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index.sqlite)")
	matchID := fs.String("match", "", "match id (required for match and ticks)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "matches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	code := runQuery(context.Background(), idx, q, *matchID, *limit, os.Stdout)
	_ = idx.Close()
	os.Exit(code)
}

// runQuery prints one JSON object per line and returns the exit code.
func runQuery(ctx context.Context, idx *indexdb.SQLiteIndex, q, matchID string, limit int, out io.Writer) int {
	if (q == "match" || q == "ticks") && strings.TrimSpace(matchID) == "" {
		fmt.Fprintln(os.Stderr, "missing -match")
		return 2
	}
	switch q {
	case "matches":
		ms, err := idx.RecentMatches(ctx, limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			return 1
		}
		for _, m := range ms {
			printJSON(out, m)
		}

	case "match":
		m, err := idx.Match(ctx, matchID)
		if errors.Is(err, indexdb.ErrNotFound) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			return 1
		}
		printJSON(out, m)

	case "ticks":
		rows, err := idx.TickDigests(ctx, matchID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			return 1
		}
		if limit > 0 && len(rows) > limit {
			rows = rows[len(rows)-limit:]
		}
		for _, r := range rows {
			printJSON(out, r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want matches|match|ticks)")
		return 2
	}
	return 0
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
