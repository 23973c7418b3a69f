package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/metrics"
	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/storage"
)

// Service enqueues notifications for asynchronous delivery. Enqueue only
// writes the row; the worker pool picks it up on its next poll, so callers
// never wait on a downstream channel.
type Service struct {
	store storage.Storage
	log   zerolog.Logger
}

func NewService(store storage.Storage, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) Enqueue(ctx context.Context, userID string, kind models.NotificationKind, body interface{}) (*models.Notification, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification body: %w", err)
	}

	now := time.Now().UTC()
	n := &models.Notification{
		ID:        models.NewID("ntf"),
		UserID:    userID,
		Kind:      kind,
		Body:      payload,
		Status:    models.NotificationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	metrics.NotificationsEnqueued.WithLabelValues(string(kind)).Inc()
	s.log.Debug().
		Str("notification_id", n.ID).
		Str("user_id", userID).
		Str("kind", string(kind)).
		Msg("notification enqueued")

	return n, nil
}
