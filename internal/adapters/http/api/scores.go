// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/okian/ladder/internal/domain/ranking"
)

// ScoresHandler handles score history requests.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleGetScores handles GET /scores?category_id=X requests. A player_id
// filter narrows to that player's history; include_obsolete=true keeps
// rows that a better later run of the same player has obsoleted.
func (h *ScoresHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	categoryID := r.URL.Query().Get("category_id")
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	q := ranking.ScoreQuery{
		PlayerID:        r.URL.Query().Get("player_id"),
		IncludeObsolete: r.URL.Query().Get("include_obsolete") == "true",
	}
	rows, err := h.deps.Scores(r.Context(), categoryID, q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
