package lifecycle

import "errors"

// Sentinel kinds for lifecycle errors. Construction and input problems
// are validation errors; transition problems are state errors.
var (
	ErrTooFewTeams     = errors.New("match requires at least two teams")
	ErrTooManyTeams    = errors.New("too many teams for one match")
	ErrEmptyTeam       = errors.New("team has no players")
	ErrDuplicatePlayer = errors.New("player appears in more than one team")

	ErrNotInMatch   = errors.New("player is not in this match")
	ErrTeamNotFound = errors.New("team is not in this match")
	ErrInvalidScore = errors.New("score is invalid for this category")

	ErrMatchNotActive    = errors.New("match is no longer active")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrUnknownStatus     = errors.New("unknown match status")
	ErrResultIncomplete  = errors.New("match result is incomplete")
)
