// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// QueueHandler handles matchmaking queue membership and passes.
type QueueHandler struct {
	deps Dependencies
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(deps Dependencies) *QueueHandler {
	return &QueueHandler{deps: deps}
}

type queueRequest struct {
	PlayerID   string `json:"player_id"`
	CategoryID string `json:"category_id"`
}

// HandleQueue handles POST, DELETE and GET /queue requests.
func (h *QueueHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.join(w, r)
	case http.MethodDelete:
		h.leave(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *QueueHandler) join(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" || strings.TrimSpace(req.CategoryID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := h.deps.JoinQueue(r.Context(), req.PlayerID, req.CategoryID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "queued"})
}

func (h *QueueHandler) leave(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := h.deps.LeaveQueue(r.Context(), playerID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "dequeued"})
}

func (h *QueueHandler) list(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("category_id")
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	players, err := h.deps.ListQueue(r.Context(), categoryID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]playerResponse, len(players))
	for i := range players {
		out[i] = toPlayerResponse(&players[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMatchmake handles POST /matchmake requests. One pass over every
// category; the committed matches come back in creation order.
func (h *QueueHandler) HandleMatchmake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	matches, err := h.deps.Matchmake(r.Context())
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
