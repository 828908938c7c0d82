// Package model contains domain records passed between layers.
package model

import (
	"time"
)

// Status enumerates the match lifecycle states.
type Status string

// Match statuses. A match is created waiting for livestreams (or ongoing
// when the category has no livestream requirement) and ends finished or
// cancelled. A contested result leaves the active set but may still be
// finished by an operator.
const (
	StatusWaitingForLivestreams Status = "waiting_for_livestreams"
	StatusOngoing               Status = "ongoing"
	StatusWaitingForAgrees      Status = "waiting_for_agrees"
	StatusResultContested       Status = "result_contested"
	StatusFinished              Status = "finished"
	StatusCancelled             Status = "cancelled"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusWaitingForLivestreams, StatusOngoing, StatusWaitingForAgrees,
		StatusResultContested, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Active reports whether a match in this status still blocks its players
// from queueing or being matched again.
func (s Status) Active() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusResultContested:
		return false
	}
	return true
}

// Match is one competitive encounter between two or more teams.
type Match struct {
	ID         string
	CategoryID string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     Status
	Teams      []Team
}

// Active is derived from the status; it is never stored independently.
func (m *Match) Active() bool {
	return m.Status.Active()
}

// Team returns the team with the given id, or nil.
func (m *Match) Team(teamID string) *Team {
	for i := range m.Teams {
		if m.Teams[i].ID == teamID {
			return &m.Teams[i]
		}
	}
	return nil
}

// Entry returns the team and team-player rows for a participant, or nils
// when the player is not in the match.
func (m *Match) Entry(playerID string) (*Team, *TeamPlayer) {
	for i := range m.Teams {
		for j := range m.Teams[i].Players {
			if m.Teams[i].Players[j].PlayerID == playerID {
				return &m.Teams[i], &m.Teams[i].Players[j]
			}
		}
	}
	return nil, nil
}

// PlayerIDs returns every participant id in team order.
func (m *Match) PlayerIDs() []string {
	ids := make([]string, 0, len(m.Teams))
	for i := range m.Teams {
		for j := range m.Teams[i].Players {
			ids = append(ids, m.Teams[i].Players[j].PlayerID)
		}
	}
	return ids
}

// Team is an ordered group of players on one side of a match.
type Team struct {
	ID        string
	Num       string // "A", "B", ...
	Forfeited bool
	Place     *int // 1 = best; nil until rankable
	Players   []TeamPlayer
}

// Score sums the member scores. The second return is false until every
// member has reported; an incomplete team has no score, not a zero score.
func (t *Team) Score() (int64, bool) {
	var sum int64
	for i := range t.Players {
		if t.Players[i].Score == nil {
			return 0, false
		}
		sum += *t.Players[i].Score
	}
	return sum, len(t.Players) > 0
}

// TeamPlayer links a player into a team and carries the rating audit
// trail for this match. MuAfter/SigmaAfter are written exactly once when
// the match finishes with a rated result.
type TeamPlayer struct {
	PlayerID       string
	Score          *int64
	ScoreFormatted string
	MuBefore       float64
	SigmaBefore    float64
	MuAfter        *float64
	SigmaAfter     *float64
}
