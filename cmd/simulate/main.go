package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/ladder/internal/simulate"
	"github.com/okian/ladder/pkg/logger"
)

// Default configuration constants.
const (
	defaultSimTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", simulate.DefaultBaseURL, "Base URL of the service")
		players = flag.Int("players", simulate.DefaultPlayers, "Number of players to register")
		rounds  = flag.Int("rounds", simulate.DefaultRounds, "Number of matchmaking rounds to run")
		workers = flag.Int("workers", simulate.DefaultWorkers, "Number of concurrent event submitters")
		timeout = flag.Duration("timeout", simulate.DefaultTimeout, "HTTP request timeout")
		seed    = flag.Int64("seed", 0, "Random seed (0 derives one from the clock)")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL: *baseURL,
		Players: *players,
		Rounds:  *rounds,
		Workers: *workers,
		Timeout: *timeout,
		Seed:    *seed,
		Verbose: *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
