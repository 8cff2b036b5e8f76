// Command mazegen writes random perfect mazes in the maze file format.
package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harp-lab/maze-game/internal/sim/maze"
)

func main() {
	var (
		width  = flag.Int("width", 11, "arena width in tiles")
		height = flag.Int("height", 11, "arena height in tiles")
		seed   = flag.Int64("seed", 0, "generator seed (0 uses the clock)")
		count  = flag.Int("n", 1, "number of mazes")
		out    = flag.String("out", "", "output file; with -pool or -n > 1 this is ignored")
		pool   = flag.String("pool", "", "directory to add mazes to, named by content hash")
	)
	flag.Parse()

	if *width < 1 || *height < 1 || *count < 1 || flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "mazegen"})
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	dir := *pool
	if dir == "" && *count > 1 {
		dir = "."
	}
	for i := 0; i < *count; i++ {
		body, err := render(maze.Generate(*width, *height, rng))
		if err != nil {
			logger.Fatal("render", "err", err)
		}
		switch {
		case dir != "":
			path, err := addToPool(dir, body)
			if err != nil {
				logger.Fatal("write", "err", err)
			}
			logger.Info("maze", "path", path)
		case *out != "":
			if err := os.WriteFile(*out, body, 0o644); err != nil {
				logger.Fatal("write", "err", err)
			}
			logger.Info("maze", "path", *out)
		default:
			_, _ = os.Stdout.Write(body)
		}
	}
}

func render(m *maze.Maze) ([]byte, error) {
	var buf bytes.Buffer
	if err := maze.Write(&buf, m.Walls); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// addToPool stores body as <dir>/<hash>.maze so identical mazes collapse to
// one file.
func addToPool(dir string, body []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	path := filepath.Join(dir, fmt.Sprintf("%s.maze", hex.EncodeToString(sum[:8])))
	return path, os.WriteFile(path, body, 0o644)
}
