package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"

	"github.com/harp-lab/maze-game/internal/bot/dfs"
)

func main() {
	var (
		name     = flag.String("name", "DFS-bot", "display name sent with himynameis")
		width    = flag.Int("width", 0, "arena width in tiles; 0 learns the boundary from observations")
		height   = flag.Int("height", 0, "arena height in tiles")
		logLevel = flag.String("log_level", "info", "debug|info|warn|error")
	)
	flag.Parse()
	if flag.NArg() != 0 || *width < 0 || *height < 0 {
		flag.Usage()
		os.Exit(2)
	}

	// stdout carries the protocol; diagnostics go to stderr.
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "bot " + *name})
	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -log_level: %v\n", err)
		os.Exit(2)
	}
	logger.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := dfs.Run(ctx, os.Stdin, os.Stdout, dfs.New(*name, *width, *height), logger); err != nil && ctx.Err() == nil {
		logger.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}
