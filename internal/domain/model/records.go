// Package model contains domain records passed between layers.
package model

import "time"

// Player is a ladder participant. QueuedFor holds at most one category id
// at a time; CurrentMatchID is non-empty while the player has an active
// match, which blocks both queueing and matching.
type Player struct {
	ID             string
	Username       string
	CreatedAt      time.Time
	LastActiveAt   time.Time
	QueuedFor      string
	CurrentMatchID string
	Banned         bool
}

// Category is one competition mode with its own ratings and leaderboards.
type Category struct {
	ID                string
	Shortcode         string
	Name              string
	Speedrun          bool // lower raw score is better
	RequireLivestream bool
	RequireAgrees     bool
	NumTeams          int
	PlayersPerTeam    int
}

// MatchSize is the total player count of a full match in this category.
func (c *Category) MatchSize() int {
	return c.NumTeams * c.PlayersPerTeam
}

// Rating is the per-player-per-category skill estimate. Created lazily on
// first match, mutated only by the rating model, never deleted.
type Rating struct {
	PlayerID   string
	CategoryID string
	Mu         float64
	Sigma      float64
}

// Score is one counted leaderboard entry, written when a score is
// reported and ranked only once its match is finished. StartedAt is
// copied from the match so tie-breaks need no join.
type Score struct {
	ID         string
	PlayerID   string
	CategoryID string
	MatchID    string
	Value      int64
	Verified   bool
	StartedAt  time.Time
}

// Report is the payload of the asynchronous score-ingestion path.
// EventID makes retries idempotent.
type Report struct {
	EventID  string
	MatchID  string
	PlayerID string
	Value    int64
}
