package rating

import "errors"

// Sentinel kinds for rating errors. These only fire on malformed input;
// valid matches always rate successfully.
var (
	ErrTooFewTeams  = errors.New("rating requires at least two teams")
	ErrEmptyTeam    = errors.New("team has no players")
	ErrRankMismatch = errors.New("ranks do not match team count")
)
