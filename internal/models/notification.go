package models

import (
	"encoding/json"
	"time"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
	NotificationExpired   NotificationStatus = "expired"
)

type NotificationKind string

const (
	KindConfirmation  NotificationKind = "confirmation"
	KindStatusUpdate  NotificationKind = "status_update"
	KindProviderMatch NotificationKind = "provider_match"
	KindError         NotificationKind = "error"
)

type Notification struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Kind          NotificationKind   `json:"kind"`
	Body          json.RawMessage    `json:"body"`
	Status        NotificationStatus `json:"status"`
	AttemptCount  int                `json:"attempt_count"`
	NextAttemptAt *time.Time         `json:"next_attempt_at,omitempty"`
	LastAttemptAt *time.Time         `json:"last_attempt_at,omitempty"`
	Read          bool               `json:"read"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type DeliveryAttempt struct {
	ID             string `json:"id"`
	NotificationID string `json:"notification_id"`
	AttemptNumber  int    `json:"attempt_number"`
	StatusCode     int    `json:"status_code"`
	ResponseBody   string `json:"response_body"`
	LatencyMs      int64  `json:"latency_ms"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"created_at"`
}
