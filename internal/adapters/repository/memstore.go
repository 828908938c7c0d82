package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// MemStore is an in-memory Store for tests and single-process runs.
// Everything is copied on the way in and out so callers never share
// memory with the store.
type MemStore struct {
	mu         sync.RWMutex
	players    map[string]model.Player
	usernames  map[string]string // lowercase username -> player id
	categories map[string]model.Category
	ratings    map[string]model.Rating // playerID/categoryID
	matches    map[string]model.Match
	scores     map[string]model.Score // matchID/playerID
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		players:    make(map[string]model.Player),
		usernames:  make(map[string]string),
		categories: make(map[string]model.Category),
		ratings:    make(map[string]model.Rating),
		matches:    make(map[string]model.Match),
		scores:     make(map[string]model.Score),
	}
}

func ratingKey(playerID, categoryID string) string { return playerID + "/" + categoryID }
func scoreKey(matchID, playerID string) string     { return matchID + "/" + playerID }

// CreatePlayer registers a new player.
func (s *MemStore) CreatePlayer(_ context.Context, p *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(p.Username)
	if _, taken := s.usernames[key]; taken {
		return ErrConflict
	}
	if _, taken := s.players[p.ID]; taken {
		return ErrConflict
	}
	s.players[p.ID] = *p
	s.usernames[key] = p.ID
	metrics.UpdateTotalPlayers(len(s.players))
	return nil
}

// Player returns one player by id.
func (s *MemStore) Player(_ context.Context, id string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// UpdatePlayer overwrites an existing player record.
func (s *MemStore) UpdatePlayer(_ context.Context, p *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[p.ID]; !ok {
		return ErrNotFound
	}
	s.players[p.ID] = *p
	return nil
}

// QueuedPlayers returns every player queued for the category, ordered by
// id for deterministic matchmaking input.
func (s *MemStore) QueuedPlayers(_ context.Context, categoryID string) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Player
	for _, p := range s.players {
		if p.QueuedFor == categoryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountPlayers returns the number of registered players.
func (s *MemStore) CountPlayers(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// CreateCategory registers a new category.
func (s *MemStore) CreateCategory(_ context.Context, c *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.Shortcode == c.Shortcode {
			return ErrConflict
		}
	}
	if _, taken := s.categories[c.ID]; taken {
		return ErrConflict
	}
	s.categories[c.ID] = *c
	return nil
}

// Category returns one category by id.
func (s *MemStore) Category(_ context.Context, id string) (*model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Categories returns every category, ordered by shortcode.
func (s *MemStore) Categories(_ context.Context) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shortcode < out[j].Shortcode })
	return out, nil
}

// Rating returns a player's rating in a category.
func (s *MemStore) Rating(_ context.Context, playerID, categoryID string) (*model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.ratings[ratingKey(playerID, categoryID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// UpsertRating inserts or overwrites a rating row.
func (s *MemStore) UpsertRating(_ context.Context, r *model.Rating) error {
	start := time.Now()
	s.mu.Lock()
	s.ratings[ratingKey(r.PlayerID, r.CategoryID)] = *r
	s.mu.Unlock()
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// CategoryRatings returns every rating row in a category, ordered by
// player id.
func (s *MemStore) CategoryRatings(_ context.Context, categoryID string) ([]model.Rating, error) {
	start := time.Now()
	s.mu.RLock()
	var out []model.Rating
	for _, r := range s.ratings {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// SaveMatch inserts or overwrites a whole match aggregate.
func (s *MemStore) SaveMatch(_ context.Context, m *model.Match) error {
	start := time.Now()
	s.mu.Lock()
	s.matches[m.ID] = *cloneMatch(m)
	s.mu.Unlock()
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// Match returns one match by id.
func (s *MemStore) Match(_ context.Context, id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMatch(&m), nil
}

// Matches lists matches ordered by start time then id.
func (s *MemStore) Matches(_ context.Context, categoryID string) ([]model.Match, error) {
	start := time.Now()
	s.mu.RLock()
	var out []model.Match
	for _, m := range s.matches {
		if categoryID == "" || m.CategoryID == categoryID {
			out = append(out, *cloneMatch(&m))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// SaveScore upserts on the (match, player) pair.
func (s *MemStore) SaveScore(_ context.Context, sc *model.Score) error {
	start := time.Now()
	s.mu.Lock()
	key := scoreKey(sc.MatchID, sc.PlayerID)
	row := *sc
	if prev, ok := s.scores[key]; ok {
		row.ID = prev.ID
		row.StartedAt = prev.StartedAt
	}
	s.scores[key] = row
	s.mu.Unlock()
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// CategoryScores returns every score row in a category, ordered by id.
func (s *MemStore) CategoryScores(_ context.Context, categoryID string) ([]model.Score, error) {
	start := time.Now()
	s.mu.RLock()
	var out []model.Score
	for _, sc := range s.scores {
		if sc.CategoryID == categoryID {
			out = append(out, sc)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }

// cloneMatch deep-copies a match so stored state and caller state never
// alias through the team slices or audit pointers.
func cloneMatch(m *model.Match) *model.Match {
	out := *m
	if m.FinishedAt != nil {
		t := *m.FinishedAt
		out.FinishedAt = &t
	}
	out.Teams = make([]model.Team, len(m.Teams))
	for i, team := range m.Teams {
		ct := team
		if team.Place != nil {
			p := *team.Place
			ct.Place = &p
		}
		ct.Players = make([]model.TeamPlayer, len(team.Players))
		for j, tp := range team.Players {
			cp := tp
			cp.Score = cloneInt64(tp.Score)
			cp.MuAfter = cloneFloat64(tp.MuAfter)
			cp.SigmaAfter = cloneFloat64(tp.SigmaAfter)
			ct.Players[j] = cp
		}
		out.Teams[i] = ct
	}
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat64(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
