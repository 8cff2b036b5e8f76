package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/harp-lab/maze-game/internal/persistence/indexdb"
	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/arena"
)

func TestRecordedMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frames-b.jsonl.zst", "frames-a.jsonl.zst", "ticks-a.jsonl.zst", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := recordedMatches(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v want %v", ids, want)
	}
}

func TestRunQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := idx.BeginMatch(ctx, indexdb.MatchInfo{
		ID:        "m1",
		StartedAt: time.Now(),
		Agents:    []indexdb.AgentInfo{{Side: protocol.Green, Command: "bot"}},
	}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = idx.TickLogger("m1").WriteTick(arena.TickLogEntry{Tick: 0, Digest: "aa"})
	idx.FinishMatch("m1", indexdb.StatusFinished, arena.Result{Ticks: 1, Scores: []arena.Score{{Side: protocol.Green, Name: "solo"}}})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	idx, err = indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	var out bytes.Buffer
	if code := runQuery(ctx, idx, "matches", "", 10, &out); code != 0 || !strings.Contains(out.String(), `"match_id":"m1"`) || !strings.Contains(out.String(), `"name":"solo"`) {
		t.Fatalf("matches: code=%d out=%s", code, out.String())
	}
	out.Reset()
	if code := runQuery(ctx, idx, "ticks", "m1", 10, &out); code != 0 || !strings.Contains(out.String(), `"digest":"aa"`) {
		t.Fatalf("ticks: code=%d out=%s", code, out.String())
	}
	if code := runQuery(ctx, idx, "match", "nope", 10, &out); code != 1 {
		t.Fatalf("missing match: code=%d", code)
	}
	if code := runQuery(ctx, idx, "match", "", 10, &out); code != 2 {
		t.Fatalf("missing -match: code=%d", code)
	}
	if code := runQuery(ctx, idx, "bogus", "", 10, &out); code != 2 {
		t.Fatalf("unknown query: code=%d", code)
	}
}

func TestGet(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(rw, r)
			return
		}
		_, _ = rw.Write([]byte("maze_match_state 1\n"))
	}))
	defer hs.Close()

	var out bytes.Buffer
	if code := get(hs.URL+"/metrics", &out); code != 0 || out.String() != "maze_match_state 1\n" {
		t.Fatalf("code=%d out=%q", code, out.String())
	}
	if code := get(hs.URL+"/nope", &out); code != 1 {
		t.Fatalf("404 should fail: code=%d", code)
	}
}
