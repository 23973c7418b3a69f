// Package janitor owns data retention: it expires stale pending
// notifications and purges terminal rows past their retention windows on a
// fixed schedule.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/metrics"
	"github.com/djobea/djobea-ai/internal/storage"
)

const sweepTimeout = time.Minute

type Janitor struct {
	store     storage.Storage
	retention config.RetentionConfig
	notifyTTL time.Duration
	cron      *cron.Cron
	log       zerolog.Logger
}

// New wires the sweep onto a cron schedule derived from the configured
// interval. notifyTTL is the pending-notification TTL; rows older than that
// expire instead of retrying forever.
func New(retention config.RetentionConfig, notifyTTL time.Duration, store storage.Storage, log zerolog.Logger) (*Janitor, error) {
	j := &Janitor{
		store:     store,
		retention: retention,
		notifyTTL: notifyTTL,
		cron:      cron.New(),
		log:       log,
	}

	spec := fmt.Sprintf("@every %s", retention.SweepInterval)
	if _, err := j.cron.AddFunc(spec, j.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.log.Info().Dur("sweep_interval", j.retention.SweepInterval).Msg("starting retention janitor")
	j.cron.Start()
	go j.sweep()
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info().Msg("retention janitor stopped")
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := time.Now().UTC()

	expired, err := j.store.ExpireNotifications(ctx, now.Add(-j.notifyTTL))
	if err != nil {
		j.log.Error().Err(err).Msg("failed to expire stale notifications")
	} else if expired > 0 {
		metrics.NotificationsExpired.Add(float64(expired))
		j.log.Info().Int64("count", expired).Msg("expired stale pending notifications")
	}

	purged, err := j.store.PurgeNotifications(ctx, now.Add(-j.retention.NotificationTTL))
	if err != nil {
		j.log.Error().Err(err).Msg("failed to purge notifications")
	} else if purged > 0 {
		j.log.Info().Int64("count", purged).Msg("purged terminal notifications")
	}

	attempts, err := j.store.PurgeAttempts(ctx, now.Add(-j.retention.AttemptTTL))
	if err != nil {
		j.log.Error().Err(err).Msg("failed to purge attempts")
	} else if attempts > 0 {
		j.log.Info().Int64("count", attempts).Msg("purged old delivery attempts")
	}

	turns, err := j.store.PurgeTurns(ctx, now.Add(-j.retention.TurnTTL))
	if err != nil {
		j.log.Error().Err(err).Msg("failed to purge conversation turns")
	} else if turns > 0 {
		j.log.Info().Int64("count", turns).Msg("purged old conversation turns")
	}

	stats, err := j.store.GetStats(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to refresh queue stats")
		return
	}
	metrics.QueuePending.Set(float64(stats.PendingCount))
}
