package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/metrics"
)

// Router tries eligible providers strictly in priority order and stops at the
// first success. Priority is fixed configuration; health only removes
// candidates, it never reorders them.
type Router struct {
	health  *HealthTracker
	timeout time.Duration
	log     zerolog.Logger
}

func NewRouter(health *HealthTracker, timeout time.Duration, log zerolog.Logger) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{health: health, timeout: timeout, log: log}
}

// Generate returns the first successful completion and the name of the
// provider that produced it. When every eligible provider fails the returned
// error matches ErrAllProvidersExhausted; no raw provider error escapes.
func (r *Router) Generate(ctx context.Context, req Request) (*Completion, string, error) {
	var attempts []ProviderAttempt

	for _, p := range r.health.Eligible() {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		start := time.Now()
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		comp, err := p.Complete(cctx, req)
		cancel()
		elapsed := time.Since(start)

		if err == nil {
			r.health.RecordSuccess(p.Name())
			metrics.LLMRequests.WithLabelValues(p.Name(), "success").Inc()
			metrics.LLMLatency.WithLabelValues(p.Name()).Observe(elapsed.Seconds())
			r.log.Debug().
				Str("provider", p.Name()).
				Dur("latency", elapsed).
				Msg("completion succeeded")
			return comp, p.Name(), nil
		}

		kind := p.Classify(err)
		r.health.RecordFailure(p.Name(), kind)
		metrics.LLMRequests.WithLabelValues(p.Name(), string(kind)).Inc()

		evt := r.log.Warn()
		if kind == FailureUnknown {
			evt = r.log.Error()
		}
		evt.Str("provider", p.Name()).
			Str("failure_kind", string(kind)).
			Dur("latency", elapsed).
			Err(err).
			Msg("provider failed, trying next")

		attempts = append(attempts, ProviderAttempt{Provider: p.Name(), Kind: kind, Err: err})
	}

	metrics.LLMExhausted.Inc()
	r.log.Error().Int("attempted", len(attempts)).Msg("all providers exhausted")
	return nil, "", &ExhaustedError{Attempts: attempts}
}
