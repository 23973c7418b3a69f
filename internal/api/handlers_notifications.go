package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/storage"
)

type NotificationHandler struct {
	store storage.Storage
}

func NewNotificationHandler(store storage.Storage) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// Poll returns every notification for a user created after the given cursor,
// in creation order. Repeating a poll with the same cursor returns the same
// set, so clients can retry freely.
func (h *NotificationHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		since = parsed
	}

	notifications, err := h.store.PollNotifications(r.Context(), userID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to poll notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.store.GetNotification(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get notification")
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	attempts, err := h.store.GetAttemptsByNotification(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get attempts")
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.store.GetNotification(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get notification")
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	if err := h.store.MarkRead(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

// Clear marks every notification for a user as read. Delivery status is
// untouched: a pending entry keeps retrying even after the user cleared it
// from their view.
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	cleared, err := h.store.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear notifications")
		return
	}
	writeCount(w, "cleared", cleared)
}

// Requeue puts a user's permanently failed notifications back in the pending
// queue for one more attempt each.
func (h *NotificationHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	requeued, err := h.store.RequeueFailed(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to requeue notifications")
		return
	}
	writeCount(w, "requeued", requeued)
}
