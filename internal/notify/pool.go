package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/storage"
)

type Pool struct {
	store    storage.Storage
	worker   *Worker
	workers  int
	pollRate time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewPool(cfg config.NotifyConfig, store storage.Storage, transport Transport, log zerolog.Logger) *Pool {
	schedule := cfg.RetrySchedule
	if len(schedule) == 0 {
		schedule = DefaultRetrySchedule
	}

	worker := NewWorker(store, transport, cfg.MaxAttempts, schedule, cfg.TTL, log)

	return &Pool{
		store:    store,
		worker:   worker,
		workers:  cfg.Workers,
		pollRate: 1 * time.Second,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Str("transport", p.worker.transport.Name()).Msg("starting notification worker pool")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()
}

func (p *Pool) Stop() {
	p.log.Info().Msg("stopping notification worker pool")
	close(p.stop)
	p.wg.Wait()
	p.log.Info().Msg("notification worker pool stopped")
}

func (p *Pool) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.pollRate)
	defer ticker.Stop()

	sem := make(chan struct{}, p.workers)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := p.store.GetDueNotifications(ctx, p.workers)
			if err != nil {
				p.log.Error().Err(err).Msg("failed to fetch due notifications")
				continue
			}

			for _, n := range due {
				n := n
				sem <- struct{}{}
				p.wg.Add(1)
				go func() {
					defer p.wg.Done()
					defer func() { <-sem }()
					p.worker.Process(ctx, n)
				}()
			}
		}
	}
}
