package storage

import (
	"context"
	"time"

	"github.com/djobea/djobea-ai/internal/models"
)

type Storage interface {
	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	PollNotifications(ctx context.Context, userID string, since time.Time) ([]models.Notification, error)
	GetDueNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	UpdateNotification(ctx context.Context, n *models.Notification) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	RequeueFailed(ctx context.Context, userID string) (int64, error)
	ExpireNotifications(ctx context.Context, olderThan time.Time) (int64, error)

	// Attempts
	CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error
	GetAttemptsByNotification(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error)

	// Conversation turns
	CreateTurn(ctx context.Context, t *models.ConversationTurn) error
	ListTurnsBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error)

	// Service requests
	UpsertRequest(ctx context.Context, r *models.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error)
	ListActiveRequests(ctx context.Context) ([]models.ServiceRequest, error)

	// Retention
	PurgeNotifications(ctx context.Context, before time.Time) (int64, error)
	PurgeAttempts(ctx context.Context, before time.Time) (int64, error)
	PurgeTurns(ctx context.Context, before time.Time) (int64, error)

	// Stats
	GetStats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type Stats struct {
	TotalTurns         int64   `json:"total_turns"`
	TotalNotifications int64   `json:"total_notifications"`
	DeliveredCount     int64   `json:"delivered_count"`
	FailedCount        int64   `json:"failed_count"`
	PendingCount       int64   `json:"pending_count"`
	ExpiredCount       int64   `json:"expired_count"`
	SuccessRate        float64 `json:"success_rate"`
	ActiveRequests     int64   `json:"active_requests"`
}
