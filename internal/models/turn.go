package models

import (
	"encoding/json"
	"time"
)

type ConversationTurn struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	UserMessage string          `json:"user_message"`
	Slots       json.RawMessage `json:"slots,omitempty"`
	Reply       string          `json:"reply"`
	Suggestions []string        `json:"suggestions"`
	Provider    string          `json:"provider"`
	Fallback    bool            `json:"fallback"`
	LatencyMs   int64           `json:"latency_ms"`
	CreatedAt   time.Time       `json:"created_at"`
}
