package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/metrics"
	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/storage"
)

type Worker struct {
	store         storage.Storage
	transport     Transport
	maxAttempts   int
	retrySchedule []time.Duration
	ttl           time.Duration
	log           zerolog.Logger
}

func NewWorker(store storage.Storage, transport Transport, maxAttempts int, retrySchedule []time.Duration, ttl time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		store:         store,
		transport:     transport,
		maxAttempts:   maxAttempts,
		retrySchedule: retrySchedule,
		ttl:           ttl,
		log:           log,
	}
}

// Process runs one delivery attempt for a due notification. Every attempt is
// recorded in the attempts audit trail regardless of outcome.
func (w *Worker) Process(ctx context.Context, n models.Notification) {
	if w.ttl > 0 && time.Since(n.CreatedAt) > w.ttl {
		n.Status = models.NotificationExpired
		n.NextAttemptAt = nil
		metrics.NotificationsExpired.Inc()
		w.log.Info().
			Str("notification_id", n.ID).
			Time("created_at", n.CreatedAt).
			Msg("notification expired before delivery")
		if err := w.store.UpdateNotification(ctx, &n); err != nil {
			w.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to expire notification")
		}
		return
	}

	result := w.transport.Send(ctx, &n)

	n.AttemptCount++
	now := time.Now().UTC()
	n.LastAttemptAt = &now

	attempt := &models.DeliveryAttempt{
		ID:             models.NewID("att"),
		NotificationID: n.ID,
		AttemptNumber:  n.AttemptCount,
		StatusCode:     result.StatusCode,
		ResponseBody:   result.ResponseBody,
		LatencyMs:      result.LatencyMs,
		Error:          result.Error,
		CreatedAt:      now.Format(time.RFC3339),
	}

	if err := w.store.CreateAttempt(ctx, attempt); err != nil {
		w.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to record attempt")
	}

	if result.Error == "" && IsSuccess(result.StatusCode) {
		n.Status = models.NotificationDelivered
		n.NextAttemptAt = nil
		metrics.NotificationsDelivered.Inc()
		metrics.DeliveryLatency.Observe(float64(result.LatencyMs) / 1000)
		w.log.Info().
			Str("notification_id", n.ID).
			Int("status_code", result.StatusCode).
			Int64("latency_ms", result.LatencyMs).
			Msg("notification delivered")
	} else if n.AttemptCount >= w.maxAttempts {
		n.Status = models.NotificationFailed
		n.NextAttemptAt = nil
		metrics.NotificationsFailed.Inc()
		w.log.Warn().
			Str("notification_id", n.ID).
			Int("attempts", n.AttemptCount).
			Str("error", result.Error).
			Msg("notification permanently failed")
	} else {
		n.NextAttemptAt = NextAttemptTime(n.AttemptCount, w.retrySchedule)
		w.log.Info().
			Str("notification_id", n.ID).
			Int("attempt", n.AttemptCount).
			Time("next_attempt", *n.NextAttemptAt).
			Msg("notification scheduled for retry")
	}

	if err := w.store.UpdateNotification(ctx, &n); err != nil {
		w.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to update notification")
	}
}
