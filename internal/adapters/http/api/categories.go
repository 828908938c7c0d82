// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/ladder/internal/domain/model"
)

// CategoriesHandler handles category management.
type CategoriesHandler struct {
	deps Dependencies
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(deps Dependencies) *CategoriesHandler {
	return &CategoriesHandler{deps: deps}
}

type createCategoryRequest struct {
	Shortcode         string `json:"shortcode"`
	Name              string `json:"name"`
	Speedrun          bool   `json:"speedrun"`
	RequireLivestream bool   `json:"require_livestream"`
	RequireAgrees     bool   `json:"require_agrees"`
	NumTeams          int    `json:"num_teams"`
	PlayersPerTeam    int    `json:"players_per_team"`
}

// HandleCategories handles POST and GET /categories requests.
func (h *CategoriesHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *CategoriesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	category, err := h.deps.CreateCategory(r.Context(), model.Category{
		Shortcode:         req.Shortcode,
		Name:              req.Name,
		Speedrun:          req.Speedrun,
		RequireLivestream: req.RequireLivestream,
		RequireAgrees:     req.RequireAgrees,
		NumTeams:          req.NumTeams,
		PlayersPerTeam:    req.PlayersPerTeam,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func (h *CategoriesHandler) list(w http.ResponseWriter, r *http.Request) {
	if shortcode := r.URL.Query().Get("shortcode"); shortcode != "" {
		category, err := h.deps.CategoryByShortcode(r.Context(), shortcode)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCategoryResponse(category))
		return
	}
	categories, err := h.deps.Categories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]categoryResponse, len(categories))
	for i := range categories {
		out[i] = toCategoryResponse(&categories[i])
	}
	writeJSON(w, http.StatusOK, out)
}
