package main

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harp-lab/maze-game/internal/sim/maze"
)

func TestRenderLoadsBack(t *testing.T) {
	m := maze.Generate(6, 4, rand.New(rand.NewSource(5)))
	body, err := render(m)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := maze.Parse(bytes.NewReader(body), 6, 4)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Walls) != len(m.Walls) {
		t.Fatalf("walls: got %d want %d", len(got.Walls), len(m.Walls))
	}
}

func TestAddToPool_NamesByContent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pool")
	body := []byte("wall 1 0 1 1\n")
	p1, err := addToPool(dir, body)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	p2, err := addToPool(dir, body)
	if err != nil || p1 != p2 {
		t.Fatalf("same body should map to one file: %s %s %v", p1, p2, err)
	}
	if !strings.HasSuffix(p1, ".maze") || len(filepath.Base(p1)) != len("0123456789abcdef.maze") {
		t.Fatalf("unexpected name %s", p1)
	}
	b, err := os.ReadFile(p1)
	if err != nil || string(b) != string(body) {
		t.Fatalf("content: %q %v", b, err)
	}
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("files=%d", len(ents))
	}
}
