// Package lifecycle drives a match from creation through score reports
// and forfeits to a finished or cancelled terminal state. Derived fields
// (team scores, formatted scores, places) are recomputed on every write;
// the rating update fires exactly once, on the edge into a finished
// state, never again on later saves.
package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/rating"
)

// Team letters, in match order.
const teamLetters = "ABCDEFGH"

// Seed is one player entering a new match with the rating snapshot taken
// at commit time.
type Seed struct {
	PlayerID string
	Rating   rating.Rating
}

// Engine applies lifecycle transitions to match records. It mutates the
// match it is handed and reports the live rating rows to persist when a
// transition assigns ratings; it never touches storage itself.
type Engine struct {
	model *rating.Model
	now   func() time.Time
}

// New creates an Engine bound to a rating model.
func New(m *rating.Model, opts ...Option) *Engine {
	e := &Engine{model: m, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewMatch builds a match from seeded teams. A player may appear in only
// one team; violating that is a construction error, not a state error.
// The match starts waiting for livestreams unless the category has no
// livestream requirement.
func (e *Engine) NewMatch(category *model.Category, teams [][]Seed) (*model.Match, error) {
	if len(teams) < 2 {
		return nil, ErrTooFewTeams
	}
	if len(teams) > len(teamLetters) {
		return nil, ErrTooManyTeams
	}

	status := model.StatusWaitingForLivestreams
	if !category.RequireLivestream {
		status = model.StatusOngoing
	}

	m := &model.Match{
		ID:         uuid.NewString(),
		CategoryID: category.ID,
		StartedAt:  e.now(),
		Status:     status,
		Teams:      make([]model.Team, 0, len(teams)),
	}

	seen := make(map[string]bool)
	for i, seeds := range teams {
		if len(seeds) == 0 {
			return nil, ErrEmptyTeam
		}
		team := model.Team{
			ID:      uuid.NewString(),
			Num:     string(teamLetters[i]),
			Players: make([]model.TeamPlayer, 0, len(seeds)),
		}
		for _, s := range seeds {
			if seen[s.PlayerID] {
				return nil, ErrDuplicatePlayer
			}
			seen[s.PlayerID] = true
			team.Players = append(team.Players, model.TeamPlayer{
				PlayerID:       s.PlayerID,
				ScoreFormatted: model.FormatScore(nil, category.Speedrun),
				MuBefore:       s.Rating.Mu,
				SigmaBefore:    s.Rating.Sigma,
			})
		}
		m.Teams = append(m.Teams, team)
	}
	return m, nil
}

// ReportScore records one player's raw score and recomputes the match's
// derived state. When the report completes the match, the returned
// ratings are the live rows the caller must persist.
func (e *Engine) ReportScore(m *model.Match, category *model.Category, playerID string, value int64) ([]model.Rating, error) {
	if !m.Active() {
		return nil, ErrMatchNotActive
	}
	_, tp := m.Entry(playerID)
	if tp == nil {
		return nil, ErrNotInMatch
	}
	if category.Speedrun && value < 0 {
		return nil, ErrInvalidScore
	}

	tp.Score = &value
	tp.ScoreFormatted = model.FormatScore(&value, category.Speedrun)
	return e.refresh(m, category)
}

// SetForfeit marks a team as withdrawn and recomputes places. The
// forfeiting team is always ranked behind every completing team.
func (e *Engine) SetForfeit(m *model.Match, category *model.Category, teamID string) ([]model.Rating, error) {
	if !m.Active() {
		return nil, ErrMatchNotActive
	}
	team := m.Team(teamID)
	if team == nil {
		return nil, ErrTeamNotFound
	}
	team.Forfeited = true
	return e.refresh(m, category)
}

// Transition moves the match to a new status. Finishing requires every
// non-forfeited team to hold a place; finishing out of a contested
// result deliberately skips the rating update (a retroactive rating
// change procedure is not defined), and cancelling never rates.
func (e *Engine) Transition(m *model.Match, category *model.Category, to model.Status) ([]model.Rating, error) {
	if !to.Valid() {
		return nil, ErrUnknownStatus
	}
	if !allowedEdge(m.Status, to) {
		return nil, ErrInvalidTransition
	}

	from := m.Status
	switch to {
	case model.StatusCancelled:
		m.Status = model.StatusCancelled
		now := e.now()
		m.FinishedAt = &now
		return nil, nil
	case model.StatusFinished:
		if !e.placesComplete(m) {
			return nil, ErrResultIncomplete
		}
		return e.finish(m, from == model.StatusResultContested)
	default:
		m.Status = to
		if from == model.StatusWaitingForLivestreams && to == model.StatusOngoing {
			// The livestream gate may have been the only thing holding a
			// fully reported match open.
			return e.refresh(m, category)
		}
		return nil, nil
	}
}

// allowedEdge encodes the legal status graph. Cancelled and contested
// are reachable from every non-terminal state.
func allowedEdge(from, to model.Status) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == model.StatusCancelled {
		return true
	}
	if to == model.StatusResultContested {
		return from != model.StatusResultContested
	}
	switch from {
	case model.StatusWaitingForLivestreams:
		return to == model.StatusOngoing
	case model.StatusOngoing:
		return to == model.StatusWaitingForAgrees || to == model.StatusFinished
	case model.StatusWaitingForAgrees:
		return to == model.StatusOngoing || to == model.StatusFinished
	case model.StatusResultContested:
		return to == model.StatusFinished
	}
	return false
}

// refresh recomputes places and, when the result is complete, advances
// the match toward completion.
func (e *Engine) refresh(m *model.Match, category *model.Category) ([]model.Rating, error) {
	e.computePlaces(m, category)

	if !e.placesComplete(m) || !m.Active() {
		return nil, nil
	}
	if m.Status == model.StatusWaitingForLivestreams {
		// Still gated on livestream checks; places stand but the match
		// cannot complete yet.
		return nil, nil
	}
	if category.RequireAgrees && m.Status == model.StatusOngoing {
		m.Status = model.StatusWaitingForAgrees
		return nil, nil
	}
	if m.Status == model.StatusWaitingForAgrees {
		// Completion now needs the explicit agree transition.
		return nil, nil
	}
	return e.finish(m, false)
}

// computePlaces derives every team's place from the current scores.
// Non-forfeited teams with complete scores are ranked competition-style
// among themselves; incomplete teams stay unplaced; forfeited teams all
// share the place after the last completing team.
func (e *Engine) computePlaces(m *model.Match, category *model.Category) {
	var forfeited int
	for i := range m.Teams {
		m.Teams[i].Place = nil
		if m.Teams[i].Forfeited {
			forfeited++
		}
	}

	forfeitPlace := len(m.Teams) - forfeited + 1
	for i := range m.Teams {
		if m.Teams[i].Forfeited {
			p := forfeitPlace
			m.Teams[i].Place = &p
		}
	}

	// A single surviving team wins outright, complete scores or not.
	if remaining := len(m.Teams) - forfeited; remaining == 1 {
		for i := range m.Teams {
			if !m.Teams[i].Forfeited {
				p := 1
				m.Teams[i].Place = &p
			}
		}
		return
	}

	var idx []int
	var values []int64
	for i := range m.Teams {
		if m.Teams[i].Forfeited {
			continue
		}
		if score, ok := m.Teams[i].Score(); ok {
			idx = append(idx, i)
			values = append(values, score)
		}
	}
	if len(idx) == 0 {
		return
	}
	places := ranking.CompetitionPlaces(values, category.Speedrun)
	for n, i := range idx {
		p := places[n]
		m.Teams[i].Place = &p
	}
}

// placesComplete reports whether every non-forfeited team holds a place.
func (e *Engine) placesComplete(m *model.Match) bool {
	for i := range m.Teams {
		if !m.Teams[i].Forfeited && m.Teams[i].Place == nil {
			return false
		}
	}
	return len(m.Teams) > 0
}

// finish moves the match to its finished state and assigns ratings
// unless the result was contested. The MuAfter guard keeps a repeated
// finish from ever rating twice.
func (e *Engine) finish(m *model.Match, fromContested bool) ([]model.Rating, error) {
	m.Status = model.StatusFinished
	now := e.now()
	m.FinishedAt = &now
	if fromContested || e.ratingsAssigned(m) {
		return nil, nil
	}
	return e.assignRatings(m)
}

func (e *Engine) ratingsAssigned(m *model.Match) bool {
	for i := range m.Teams {
		for j := range m.Teams[i].Players {
			if m.Teams[i].Players[j].MuAfter != nil {
				return true
			}
		}
	}
	return false
}

// assignRatings rates the match from team places, stamps the audit trail
// onto each team player (published mu rounded, sigma full precision) and
// returns the live rating rows to persist.
func (e *Engine) assignRatings(m *model.Match) ([]model.Rating, error) {
	teams := make([][]rating.Rating, len(m.Teams))
	ranks := make([]int, len(m.Teams))
	for i := range m.Teams {
		if m.Teams[i].Place == nil {
			return nil, ErrResultIncomplete
		}
		ranks[i] = *m.Teams[i].Place
		teams[i] = make([]rating.Rating, len(m.Teams[i].Players))
		for j, tp := range m.Teams[i].Players {
			teams[i][j] = rating.Rating{Mu: tp.MuBefore, Sigma: tp.SigmaBefore}
		}
	}

	rated, err := e.model.Rate(teams, ranks)
	if err != nil {
		return nil, err
	}

	updated := make([]model.Rating, 0, len(m.PlayerIDs()))
	for i := range m.Teams {
		for j := range m.Teams[i].Players {
			tp := &m.Teams[i].Players[j]
			r := rated[i][j]
			muAfter := float64(rating.PublishMu(r.Mu))
			sigmaAfter := r.Sigma
			tp.MuAfter = &muAfter
			tp.SigmaAfter = &sigmaAfter
			updated = append(updated, model.Rating{
				PlayerID:   tp.PlayerID,
				CategoryID: m.CategoryID,
				Mu:         r.Mu,
				Sigma:      r.Sigma,
			})
		}
	}
	return updated, nil
}

// PredictWin forecasts each team's win probability from the rating
// snapshots taken at match creation. Display only; nothing is mutated.
func (e *Engine) PredictWin(m *model.Match) []float64 {
	teams := make([][]rating.Rating, len(m.Teams))
	for i := range m.Teams {
		teams[i] = make([]rating.Rating, len(m.Teams[i].Players))
		for j, tp := range m.Teams[i].Players {
			teams[i][j] = rating.Rating{Mu: tp.MuBefore, Sigma: tp.SigmaBefore}
		}
	}
	return e.model.PredictWin(teams)
}
