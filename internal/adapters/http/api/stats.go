// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// StatsProvider exposes the service's runtime counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the operational snapshot endpoint.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler creates a stats handler over the provider.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleStats handles GET /stats requests. Collecting the snapshot also
// refreshes the queue and player gauges.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
