// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/ladder/internal/domain/model"
)

// MatchesHandler handles match reads and lifecycle operations.
type MatchesHandler struct {
	deps Dependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps Dependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

type scoreRequest struct {
	PlayerID string `json:"player_id"`
	Value    int64  `json:"value"`
}

type forfeitRequest struct {
	TeamID string `json:"team_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type predictionResponse struct {
	MatchID       string             `json:"match_id"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// HandleMatches dispatches requests under /matches/. Supported routes:
//
//	GET  /matches/{id}
//	GET  /matches/{id}/prediction
//	POST /matches/{id}/scores
//	POST /matches/{id}/forfeit
//	POST /matches/{id}/status
func (h *MatchesHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	// Extract path parameters after /matches/
	path := strings.TrimPrefix(r.URL.Path, "/matches/")
	matchID, action, _ := strings.Cut(path, "/")
	if matchID == "" || strings.Contains(action, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.get(w, r, matchID)
	case action == "prediction" && r.Method == http.MethodGet:
		h.predict(w, r, matchID)
	case action == "scores" && r.Method == http.MethodPost:
		h.reportScore(w, r, matchID)
	case action == "forfeit" && r.Method == http.MethodPost:
		h.forfeit(w, r, matchID)
	case action == "status" && r.Method == http.MethodPost:
		h.transition(w, r, matchID)
	default:
		http.NotFound(w, r)
	}
}

// HandleListMatches handles GET /matches requests. An optional
// category_id query parameter narrows the listing to one category.
func (h *MatchesHandler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	matches, err := h.deps.Matches(r.Context(), r.URL.Query().Get("category_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]matchResponse, len(matches))
	for i := range matches {
		out[i] = toMatchResponse(&matches[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MatchesHandler) get(w http.ResponseWriter, r *http.Request, matchID string) {
	m, err := h.deps.Match(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (h *MatchesHandler) predict(w http.ResponseWriter, r *http.Request, matchID string) {
	m, err := h.deps.Match(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	probs, err := h.deps.PredictWin(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Keyed by team id so the order of the probability vector never leaks
	// into the contract.
	byTeam := make(map[string]float64, len(probs))
	for i := range m.Teams {
		if i < len(probs) {
			byTeam[m.Teams[i].ID] = probs[i]
		}
	}
	writeJSON(w, http.StatusOK, predictionResponse{MatchID: matchID, Probabilities: byTeam})
}

func (h *MatchesHandler) reportScore(w http.ResponseWriter, r *http.Request, matchID string) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	m, err := h.deps.ReportScore(r.Context(), matchID, req.PlayerID, req.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (h *MatchesHandler) forfeit(w http.ResponseWriter, r *http.Request, matchID string) {
	var req forfeitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.TeamID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	m, err := h.deps.SetForfeit(r.Context(), matchID, req.TeamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (h *MatchesHandler) transition(w http.ResponseWriter, r *http.Request, matchID string) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	m, err := h.deps.TransitionStatus(r.Context(), matchID, model.Status(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}
