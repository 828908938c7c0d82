// Package simulate drives a running ladder service end to end: it
// registers players, queues them, runs matchmaking passes, reports
// scores through the async event endpoint and verifies the resulting
// leaderboard.
package simulate

import "time"

// Default simulation parameters.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultPlayers = 64
	DefaultRounds  = 10
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
)

// Config holds the simulation parameters.
type Config struct {
	BaseURL string
	Players int
	Rounds  int
	Workers int
	Timeout time.Duration
	Seed    int64
	Verbose bool
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Players: DefaultPlayers,
		Rounds:  DefaultRounds,
		Workers: DefaultWorkers,
		Timeout: DefaultTimeout,
	}
}

// Stats tracks simulation progress and results.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	PlayersRegistered int
	MatchesCreated    int
	MatchesFinished   int
	EventsSubmitted   int
	EventsAccepted    int
	EventsDuplicate   int
	EventsFailed      int
	LeaderboardRows   int
}
