package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/djobea/djobea-ai/internal/llm"
)

type ProviderHandler struct {
	tracker *llm.HealthTracker
}

func NewProviderHandler(tracker *llm.HealthTracker) *ProviderHandler {
	return &ProviderHandler{tracker: tracker}
}

func (h *ProviderHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

// Reset clears a provider's failure state, typically after topping up
// credits on an excluded backend.
func (h *ProviderHandler) Reset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.tracker.Reset(name) {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reset": name})
}
