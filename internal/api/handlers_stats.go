package api

import (
	"net/http"

	"github.com/djobea/djobea-ai/internal/scheduler"
	"github.com/djobea/djobea-ai/internal/storage"
)

type StatsHandler struct {
	store      storage.Storage
	supervisor *scheduler.Supervisor
}

func NewStatsHandler(store storage.Storage, supervisor *scheduler.Supervisor) *StatsHandler {
	return &StatsHandler{store: store, supervisor: supervisor}
}

func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "degraded",
			"service": "djobea-ai",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "djobea-ai",
	})
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.supervisor.Jobs()
	if jobs == nil {
		jobs = []scheduler.JobStatus{}
	}
	writeJSON(w, http.StatusOK, jobs)
}
