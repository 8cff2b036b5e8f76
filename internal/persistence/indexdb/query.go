package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("match not found")

type MatchSummary struct {
	ID         string         `json:"match_id"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Status     string         `json:"status"`
	Seed       int64          `json:"seed"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	MatchTicks int            `json:"match_ticks"`
	Ticks      uint64         `json:"ticks"`
	Winner     int            `json:"winner"`
	FramesPath string         `json:"frames_path"`
	Agents     []AgentSummary `json:"agents"`
}

type AgentSummary struct {
	Slot       int    `json:"slot"`
	Side       string `json:"side"`
	Command    string `json:"command"`
	Name       string `json:"name"`
	Flags      int    `json:"flags"`
	CoinsHeld  int    `json:"coins_held"`
	CoinsTotal int    `json:"coins_total"`
}

type TickRow struct {
	Tick     uint64 `json:"tick"`
	Digest   string `json:"digest"`
	Commands int    `json:"commands"`
}

const matchColumns = `match_id,started_at,COALESCE(finished_at,''),status,seed,width,height,match_ticks,ticks,winner,frames_path`

func scanMatch(sc interface{ Scan(...any) error }) (MatchSummary, error) {
	var m MatchSummary
	var ticks int64
	err := sc.Scan(&m.ID, &m.StartedAt, &m.FinishedAt, &m.Status, &m.Seed, &m.Width, &m.Height, &m.MatchTicks, &ticks, &m.Winner, &m.FramesPath)
	m.Ticks = uint64(ticks)
	return m, err
}

// RecentMatches lists the newest matches first, with their agents.
func (s *SQLiteIndex) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY started_at DESC, match_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var out []MatchSummary
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Agents, err = s.agents(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteIndex) Match(ctx context.Context, id string) (MatchSummary, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return MatchSummary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return MatchSummary{}, err
	}
	m.Agents, err = s.agents(ctx, id)
	return m, err
}

func (s *SQLiteIndex) agents(ctx context.Context, id string) ([]AgentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot,side,command,name,flags,coins_held,coins_total FROM match_agents WHERE match_id=? ORDER BY slot`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgentSummary
	for rows.Next() {
		var a AgentSummary
		if err := rows.Scan(&a.Slot, &a.Side, &a.Command, &a.Name, &a.Flags, &a.CoinsHeld, &a.CoinsTotal); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TickDigests returns the indexed ticks of a match in order.
func (s *SQLiteIndex) TickDigests(ctx context.Context, id string) ([]TickRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick,digest,commands FROM ticks WHERE match_id=? ORDER BY tick`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var r TickRow
		var tick int64
		if err := rows.Scan(&tick, &r.Digest, &r.Commands); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}
