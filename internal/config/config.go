// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers file and environment overrides on top.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. Empty selects the in-memory
	// store, which loses state on restart.
	DBPath string `koanf:"db_path"`

	// StartingMu is the skill estimate given to unrated players. The
	// starting sigma, beta and tau are derived from it.
	StartingMu float64 `koanf:"starting_mu"`

	// MatchmakingAdmissionDelay is the number of matchmaking passes
	// suppressed after a player joins a queue that could already match,
	// giving later joiners a chance to improve the pairing.
	MatchmakingAdmissionDelay int `koanf:"matchmaking_admission_delay"`

	// MaxMatchPlayers caps the total player count of a single match.
	MaxMatchPlayers int `koanf:"max_match_players"`

	// ReportQueueSize bounds the in-memory report queue.
	ReportQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of report workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		Addr:                      ":9080",
		DBPath:                    "",
		StartingMu:                1500,
		MatchmakingAdmissionDelay: 2,
		MaxMatchPlayers:           8,
		ReportQueueSize:           100_000,
		WorkerCount:               runtime.NumCPU() * 4,
		DedupeSize:                500_000,
		MaxLeaderboardLimit:       100,
	}
}
