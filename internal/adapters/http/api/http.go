// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Registration and category management.
	RegisterPlayer(ctx context.Context, username string) (*model.Player, error)
	Player(ctx context.Context, playerID string) (*model.Player, error)
	CreateCategory(ctx context.Context, c model.Category) (*model.Category, error)
	Categories(ctx context.Context) ([]model.Category, error)
	CategoryByShortcode(ctx context.Context, shortcode string) (*model.Category, error)

	// Queue and matchmaking.
	JoinQueue(ctx context.Context, playerID, categoryID string) error
	LeaveQueue(ctx context.Context, playerID string) error
	ListQueue(ctx context.Context, categoryID string) ([]model.Player, error)
	Matchmake(ctx context.Context) ([]model.Match, error)

	// Match lifecycle.
	Match(ctx context.Context, matchID string) (*model.Match, error)
	Matches(ctx context.Context, categoryID string) ([]model.Match, error)
	ReportScore(ctx context.Context, matchID, playerID string, value int64) (*model.Match, error)
	SetForfeit(ctx context.Context, matchID, teamID string) (*model.Match, error)
	TransitionStatus(ctx context.Context, matchID string, to model.Status) (*model.Match, error)
	PredictWin(ctx context.Context, matchID string) ([]float64, error)

	// Read models.
	Leaderboard(ctx context.Context, categoryID string, limit int) ([]ranking.RatingRow, error)
	Scores(ctx context.Context, categoryID string, q ranking.ScoreQuery) ([]ranking.ScoreRow, error)

	// Async report ingestion. SeenAndRecord marks an event id, Unrecord
	// rolls the mark back, EnqueueReport returns false on backpressure.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	EnqueueReport(ctx context.Context, r model.Report) bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	playersHandler     *PlayersHandler
	categoriesHandler  *CategoriesHandler
	queueHandler       *QueueHandler
	matchesHandler     *MatchesHandler
	leaderboardHandler *LeaderboardHandler
	scoresHandler      *ScoresHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		playersHandler:     NewPlayersHandler(deps),
		categoriesHandler:  NewCategoriesHandler(deps),
		queueHandler:       NewQueueHandler(deps),
		matchesHandler:     NewMatchesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		scoresHandler:      NewScoresHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/players", MetricsMiddleware(s.playersHandler.HandlePlayers, "players"))
	mux.HandleFunc("/players/", MetricsMiddleware(s.playersHandler.HandlePlayer, "players"))
	mux.HandleFunc("/categories", MetricsMiddleware(s.categoriesHandler.HandleCategories, "categories"))
	mux.HandleFunc("/queue", MetricsMiddleware(s.queueHandler.HandleQueue, "queue"))
	mux.HandleFunc("/matchmake", MetricsMiddleware(s.queueHandler.HandleMatchmake, "matchmake"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleListMatches, "matches"))
	mux.HandleFunc("/matches/", MetricsMiddleware(s.matchesHandler.HandleMatches, "matches"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandleGetScores, "scores"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// playerResponse mirrors the OpenAPI schema for player records.
type playerResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	CreatedAt      string `json:"created_at"`
	QueuedFor      string `json:"queued_for,omitempty"`
	CurrentMatchID string `json:"current_match_id,omitempty"`
	Banned         bool   `json:"banned,omitempty"`
}

func toPlayerResponse(p *model.Player) playerResponse {
	return playerResponse{
		ID:             p.ID,
		Username:       p.Username,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
		QueuedFor:      p.QueuedFor,
		CurrentMatchID: p.CurrentMatchID,
		Banned:         p.Banned,
	}
}

// categoryResponse mirrors the OpenAPI schema for category records.
type categoryResponse struct {
	ID                string `json:"id"`
	Shortcode         string `json:"shortcode"`
	Name              string `json:"name"`
	Speedrun          bool   `json:"speedrun"`
	RequireLivestream bool   `json:"require_livestream"`
	RequireAgrees     bool   `json:"require_agrees"`
	NumTeams          int    `json:"num_teams"`
	PlayersPerTeam    int    `json:"players_per_team"`
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{
		ID:                c.ID,
		Shortcode:         c.Shortcode,
		Name:              c.Name,
		Speedrun:          c.Speedrun,
		RequireLivestream: c.RequireLivestream,
		RequireAgrees:     c.RequireAgrees,
		NumTeams:          c.NumTeams,
		PlayersPerTeam:    c.PlayersPerTeam,
	}
}

// matchResponse mirrors the OpenAPI schema for match aggregates.
type matchResponse struct {
	ID         string         `json:"id"`
	CategoryID string         `json:"category_id"`
	Status     string         `json:"status"`
	Active     bool           `json:"active"`
	StartedAt  string         `json:"started_at"`
	FinishedAt *string        `json:"finished_at,omitempty"`
	Teams      []teamResponse `json:"teams"`
}

type teamResponse struct {
	ID        string               `json:"id"`
	Num       string               `json:"num"`
	Forfeited bool                 `json:"forfeited"`
	Place     *int                 `json:"place"`
	Players   []teamPlayerResponse `json:"players"`
}

type teamPlayerResponse struct {
	PlayerID       string   `json:"player_id"`
	Score          *int64   `json:"score"`
	ScoreFormatted string   `json:"score_formatted"`
	MuBefore       float64  `json:"mu_before"`
	MuAfter        *float64 `json:"mu_after,omitempty"`
}

func toMatchResponse(m *model.Match) matchResponse {
	resp := matchResponse{
		ID:         m.ID,
		CategoryID: m.CategoryID,
		Status:     string(m.Status),
		Active:     m.Active(),
		StartedAt:  m.StartedAt.UTC().Format(time.RFC3339),
		Teams:      make([]teamResponse, len(m.Teams)),
	}
	if m.FinishedAt != nil {
		s := m.FinishedAt.UTC().Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	for i := range m.Teams {
		t := &m.Teams[i]
		tr := teamResponse{
			ID:        t.ID,
			Num:       t.Num,
			Forfeited: t.Forfeited,
			Place:     t.Place,
			Players:   make([]teamPlayerResponse, len(t.Players)),
		}
		for j := range t.Players {
			p := &t.Players[j]
			tr.Players[j] = teamPlayerResponse{
				PlayerID:       p.PlayerID,
				Score:          p.Score,
				ScoreFormatted: p.ScoreFormatted,
				MuBefore:       p.MuBefore,
				MuAfter:        p.MuAfter,
			}
		}
		resp.Teams[i] = tr
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
