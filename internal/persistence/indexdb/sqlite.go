package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harp-lab/maze-game/internal/protocol"
	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/sim/tuning"
)

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// SQLiteIndex is the results index: one row per match, per agent and per
// tick. Writes after BeginMatch go through a single writer goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed        atomic.Bool
	dropTickTotal atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqFinish
)

type req struct {
	kind    reqKind
	matchID string

	tick   arena.TickLogEntry
	finish finishRow
}

type finishRow struct {
	Status     string
	FinishedAt string
	Result     arena.Result
}

type MatchInfo struct {
	ID         string
	StartedAt  time.Time
	Seed       int64
	Width      int
	Height     int
	MatchTicks int
	FramesPath string
	Tuning     tuning.Tuning
	Agents     []AgentInfo
}

type AgentInfo struct {
	Side    protocol.Side
	Command string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			seed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			match_ticks INTEGER NOT NULL,
			ticks INTEGER NOT NULL DEFAULT 0,
			winner INTEGER NOT NULL DEFAULT -1,
			frames_path TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_started ON matches(started_at);`,
		`CREATE TABLE IF NOT EXISTS match_agents (
			match_id TEXT NOT NULL REFERENCES matches(match_id),
			slot INTEGER NOT NULL,
			side TEXT NOT NULL,
			command TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			flags INTEGER NOT NULL DEFAULT 0,
			coins_held INTEGER NOT NULL DEFAULT 0,
			coins_total INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (match_id, slot)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// BeginMatch records a match and its agents synchronously, before the first
// tick.
func (s *SQLiteIndex) BeginMatch(ctx context.Context, m MatchInfo) error {
	tj, err := json.Marshal(m.Tuning)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tj)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO matches(match_id,started_at,status,seed,width,height,match_ticks,frames_path,tuning_digest,tuning_json) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.StartedAt.UTC().Format(time.RFC3339Nano), StatusRunning, m.Seed, m.Width, m.Height, m.MatchTicks,
		m.FramesPath, hex.EncodeToString(sum[:]), string(tj),
	); err != nil {
		return fmt.Errorf("insert match %s: %w", m.ID, err)
	}
	for i, a := range m.Agents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_agents(match_id,slot,side,command) VALUES(?,?,?,?)`,
			m.ID, i, string(a.Side), a.Command,
		); err != nil {
			return fmt.Errorf("insert agent %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// TickLogger returns an arena.TickLogger that indexes one match. Entries are
// dropped when the writer falls behind; the compressed tick log stays the
// source of truth.
func (s *SQLiteIndex) TickLogger(matchID string) arena.TickLogger {
	return matchTicks{s: s, matchID: matchID}
}

type matchTicks struct {
	s       *SQLiteIndex
	matchID string
}

func (m matchTicks) WriteTick(entry arena.TickLogEntry) error {
	if m.s == nil || m.s.closed.Load() {
		return nil
	}
	select {
	case m.s.ch <- req{kind: reqTick, matchID: m.matchID, tick: entry}:
	default:
		m.s.dropTickTotal.Add(1)
	}
	return nil
}

// FinishMatch queues the outcome behind any pending ticks. It never drops.
func (s *SQLiteIndex) FinishMatch(matchID, status string, res arena.Result) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqFinish, matchID: matchID, finish: finishRow{
		Status:     status,
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Result:     res,
	}}
}

type Stats struct {
	DropTickTotal uint64
	QueueDepth    int
	QueueCapacity int
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropTickTotal: s.dropTickTotal.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(match_id,tick,digest,commands,raw_json) VALUES(?,?,?,?,?)`)
	finishMatch, _ := s.db.Prepare(`UPDATE matches SET finished_at=?, status=?, ticks=?, winner=? WHERE match_id=?`)
	finishAgent, _ := s.db.Prepare(`UPDATE match_agents SET name=?, flags=?, coins_held=?, coins_total=? WHERE match_id=? AND slot=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, finishMatch, finishAgent} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				continue
			}
			raw, _ := json.Marshal(r.tick)
			if _, err := tx.Stmt(insertTick).Exec(r.matchID, int64(r.tick.Tick), r.tick.Digest, len(r.tick.Commands), string(raw)); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqFinish:
			if finishMatch == nil || finishAgent == nil {
				continue
			}
			f := r.finish
			if _, err := tx.Stmt(finishMatch).Exec(f.FinishedAt, f.Status, int64(f.Result.Ticks), f.Result.Winner, r.matchID); err != nil {
				rollback()
				continue
			}
			for i, sc := range f.Result.Scores {
				if _, err := tx.Stmt(finishAgent).Exec(sc.Name, sc.Flags, sc.CoinsHeld, sc.CoinsTotal, r.matchID, i); err != nil {
					rollback()
					break
				}
			}
			// Outcomes commit immediately.
			commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
