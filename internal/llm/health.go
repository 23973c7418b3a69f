package llm

import (
	"sort"
	"sync"
	"time"
)

type RankedProvider struct {
	Provider Provider
	Priority int
}

type providerState struct {
	mu       sync.Mutex
	provider Provider
	priority int

	consecutiveFailures int
	successCount        int64
	failureCount        int64
	lastFailureKind     FailureKind
	lastFailureAt       time.Time
	cooldownUntil       time.Time
}

// HealthTracker keeps per-provider failure state and decides which backends
// the router may use. Each provider carries its own lock: recording one
// backend's outcome never blocks another's.
type HealthTracker struct {
	states    []*providerState
	byName    map[string]*providerState
	threshold int
	cooldown  time.Duration
}

func NewHealthTracker(providers []RankedProvider, failureThreshold int, rateLimitCooldown time.Duration) *HealthTracker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	t := &HealthTracker{
		byName:    make(map[string]*providerState),
		threshold: failureThreshold,
		cooldown:  rateLimitCooldown,
	}
	for _, rp := range providers {
		st := &providerState{provider: rp.Provider, priority: rp.Priority}
		t.states = append(t.states, st)
		t.byName[rp.Provider.Name()] = st
	}
	sort.SliceStable(t.states, func(i, j int) bool {
		return t.states[i].priority < t.states[j].priority
	})
	return t
}

// RecordSuccess zeroes the consecutive-failure counter and lifts any cooldown.
// Unknown names are ignored.
func (t *HealthTracker) RecordSuccess(name string) {
	st, ok := t.byName[name]
	if !ok {
		return
	}
	st.mu.Lock()
	st.consecutiveFailures = 0
	st.successCount++
	st.cooldownUntil = time.Time{}
	st.mu.Unlock()
}

func (t *HealthTracker) RecordFailure(name string, kind FailureKind) {
	st, ok := t.byName[name]
	if !ok {
		return
	}
	st.mu.Lock()
	st.consecutiveFailures++
	st.failureCount++
	st.lastFailureKind = kind
	st.lastFailureAt = time.Now()
	if kind == FailureRateLimited {
		st.cooldownUntil = time.Now().Add(t.cooldown)
	}
	st.mu.Unlock()
}

// Reset clears a provider's failure state, lifting a credit exclusion.
// Returns false for unknown names.
func (t *HealthTracker) Reset(name string) bool {
	st, ok := t.byName[name]
	if !ok {
		return false
	}
	st.mu.Lock()
	st.consecutiveFailures = 0
	st.lastFailureKind = ""
	st.cooldownUntil = time.Time{}
	st.mu.Unlock()
	return true
}

// Eligible returns providers in ascending priority order, skipping those
// excluded for credit exhaustion or sitting out a rate-limit cooldown.
func (t *HealthTracker) Eligible() []Provider {
	now := time.Now()
	var out []Provider
	for _, st := range t.states {
		st.mu.Lock()
		ok := st.eligibleLocked(now, t.threshold)
		st.mu.Unlock()
		if ok {
			out = append(out, st.provider)
		}
	}
	return out
}

// Providers returns every registered provider in priority order, eligible
// or not.
func (t *HealthTracker) Providers() []Provider {
	out := make([]Provider, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, st.provider)
	}
	return out
}

func (st *providerState) eligibleLocked(now time.Time, threshold int) bool {
	if st.consecutiveFailures >= threshold && st.lastFailureKind == FailureCreditExhausted {
		return false
	}
	if now.Before(st.cooldownUntil) {
		return false
	}
	return true
}

type ProviderHealth struct {
	Name                string      `json:"name"`
	Priority            int         `json:"priority"`
	Eligible            bool        `json:"eligible"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	SuccessCount        int64       `json:"success_count"`
	FailureCount        int64       `json:"failure_count"`
	SuccessRate         float64     `json:"success_rate"`
	LastFailureKind     FailureKind `json:"last_failure_kind,omitempty"`
	LastFailureAt       *time.Time  `json:"last_failure_at,omitempty"`
	CooldownUntil       *time.Time  `json:"cooldown_until,omitempty"`
}

// Snapshot reports per-provider counters. Success rate is informational;
// routing never consults it.
func (t *HealthTracker) Snapshot() []ProviderHealth {
	now := time.Now()
	out := make([]ProviderHealth, 0, len(t.states))
	for _, st := range t.states {
		st.mu.Lock()
		h := ProviderHealth{
			Name:                st.provider.Name(),
			Priority:            st.priority,
			Eligible:            st.eligibleLocked(now, t.threshold),
			ConsecutiveFailures: st.consecutiveFailures,
			SuccessCount:        st.successCount,
			FailureCount:        st.failureCount,
			LastFailureKind:     st.lastFailureKind,
		}
		if total := st.successCount + st.failureCount; total > 0 {
			h.SuccessRate = float64(st.successCount) / float64(total)
		}
		if !st.lastFailureAt.IsZero() {
			at := st.lastFailureAt
			h.LastFailureAt = &at
		}
		if now.Before(st.cooldownUntil) {
			until := st.cooldownUntil
			h.CooldownUntil = &until
		}
		st.mu.Unlock()
		out = append(out, h)
	}
	return out
}
