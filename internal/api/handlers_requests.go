package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/notify"
	"github.com/djobea/djobea-ai/internal/scheduler"
	"github.com/djobea/djobea-ai/internal/storage"
)

// RequestHandler mirrors service requests pushed by the request-lifecycle
// service and reacts to their transitions: a fresh request confirms receipt,
// an assignment announces the technician, a terminal status stops the
// proactive update loop.
type RequestHandler struct {
	store      storage.Storage
	queue      *notify.Service
	supervisor *scheduler.Supervisor
	log        zerolog.Logger
}

func NewRequestHandler(store storage.Storage, queue *notify.Service, supervisor *scheduler.Supervisor, log zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		store:      store,
		queue:      queue,
		supervisor: supervisor,
		log:        log,
	}
}

type syncRequest struct {
	UserID      string `json:"user_id"`
	ServiceType string `json:"service_type"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Status      string `json:"status"`
}

type requestEventBody struct {
	RequestID   string `json:"request_id"`
	ServiceType string `json:"service_type"`
	Message     string `json:"message"`
}

func validStatus(s models.RequestStatus) bool {
	switch s {
	case models.RequestPending, models.RequestAssigned, models.RequestInProgress,
		models.RequestCompleted, models.RequestCancelled:
		return true
	}
	return false
}

func (h *RequestHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ServiceType == "" {
		writeError(w, http.StatusBadRequest, "service_type is required")
		return
	}

	status := models.RequestStatus(req.Status)
	if req.Status == "" {
		status = models.RequestPending
	}
	if !validStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	existing, err := h.store.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get request")
		return
	}

	now := time.Now().UTC()
	sr := &models.ServiceRequest{
		ID:          id,
		UserID:      req.UserID,
		ServiceType: req.ServiceType,
		Description: req.Description,
		Location:    req.Location,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		sr.CreatedAt = existing.CreatedAt
	}

	if err := h.store.UpsertRequest(r.Context(), sr); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sync request")
		return
	}

	h.notifyTransition(r, existing, sr)

	if status.Terminal() {
		if h.supervisor.Cancel(id) {
			h.log.Debug().Str("request_id", id).Msg("stopped proactive updates for terminal request")
		}
	}

	if existing == nil {
		writeJSON(w, http.StatusCreated, sr)
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

func (h *RequestHandler) notifyTransition(r *http.Request, existing, sr *models.ServiceRequest) {
	var kind models.NotificationKind
	var message string

	switch {
	case existing == nil:
		kind = models.KindConfirmation
		message = fmt.Sprintf("Votre demande de %s a bien été enregistrée. Nous recherchons un technicien disponible.", sr.ServiceType)
	case existing.Status != sr.Status && sr.Status == models.RequestAssigned:
		kind = models.KindProviderMatch
		message = fmt.Sprintf("Bonne nouvelle ! Un technicien a accepté votre demande de %s. Il vous contactera très rapidement.", sr.ServiceType)
	default:
		return
	}

	_, err := h.queue.Enqueue(r.Context(), sr.UserID, kind, requestEventBody{
		RequestID:   sr.ID,
		ServiceType: sr.ServiceType,
		Message:     message,
	})
	if err != nil {
		h.log.Error().Err(err).Str("request_id", sr.ID).Str("kind", string(kind)).Msg("failed to enqueue request notification")
	}
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sr, err := h.store.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get request")
		return
	}
	if sr == nil {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	writeJSON(w, http.StatusOK, sr)
}
