package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/conversation"
	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/notify"
	"github.com/djobea/djobea-ai/internal/storage"
)

type ChatHandler struct {
	engine       *conversation.Engine
	store        storage.Storage
	queue        *notify.Service
	historyLimit int
	log          zerolog.Logger
}

func NewChatHandler(engine *conversation.Engine, store storage.Storage, queue *notify.Service, historyLimit int, log zerolog.Logger) *ChatHandler {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &ChatHandler{
		engine:       engine,
		store:        store,
		queue:        queue,
		historyLimit: historyLimit,
		log:          log,
	}
}

type chatRequest struct {
	SessionID string                   `json:"session_id"`
	UserID    string                   `json:"user_id"`
	Message   string                   `json:"message"`
	Slots     conversation.SlotContext `json:"slots"`
}

type chatResponse struct {
	TurnID      string   `json:"turn_id"`
	SessionID   string   `json:"session_id"`
	Reply       string   `json:"reply"`
	Suggestions []string `json:"suggestions"`
	Provider    string   `json:"provider,omitempty"`
	Fallback    bool     `json:"fallback"`
	LatencyMs   int64    `json:"latency_ms"`
}

// errorBody is what lands in the notification queue when a reply had to fall
// back to static copy. The durable channel carries the apology even if the
// synchronous response is lost.
type errorBody struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

const maxChatPayload = 64 * 1024 // 64KB

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatPayload)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		// First message of a conversation. The client carries the minted ID
		// on every following turn.
		req.SessionID = uuid.NewString()
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	history, err := h.store.ListTurnsBySession(r.Context(), req.SessionID, h.historyLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation history")
		return
	}

	start := time.Now()
	reply, err := h.engine.Respond(r.Context(), conversation.Input{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
		Slots:     req.Slots,
	}, history)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to generate reply")
		writeError(w, http.StatusInternalServerError, "failed to generate reply")
		return
	}
	latency := time.Since(start).Milliseconds()

	slots, _ := json.Marshal(req.Slots)
	turn := &models.ConversationTurn{
		ID:          models.NewID("trn"),
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		UserMessage: req.Message,
		Slots:       slots,
		Reply:       reply.Text,
		Suggestions: reply.Suggestions,
		Provider:    reply.Provider,
		Fallback:    reply.Fallback,
		LatencyMs:   latency,
		CreatedAt:   time.Now().UTC(),
	}

	// History is best effort: a failed insert must not cost the user the
	// reply that was already generated.
	if err := h.store.CreateTurn(r.Context(), turn); err != nil {
		h.log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to persist conversation turn")
	}

	if reply.Fallback {
		if _, err := h.queue.Enqueue(r.Context(), req.UserID, models.KindError, errorBody{
			SessionID: req.SessionID,
			Message:   reply.Text,
		}); err != nil {
			h.log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to enqueue fallback notification")
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		TurnID:      turn.ID,
		SessionID:   req.SessionID,
		Reply:       reply.Text,
		Suggestions: reply.Suggestions,
		Provider:    reply.Provider,
		Fallback:    reply.Fallback,
		LatencyMs:   latency,
	})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	turns, err := h.store.ListTurnsBySession(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversation turns")
		return
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, turns)
}
