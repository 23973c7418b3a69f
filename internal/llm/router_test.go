package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeErr struct {
	kind FailureKind
}

func (e fakeErr) Error() string { return "fake failure: " + string(e.kind) }

type fakeProvider struct {
	name    string
	calls   int
	results []error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	i := f.calls
	f.calls++
	if i < len(f.results) && f.results[i] != nil {
		return nil, f.results[i]
	}
	return &Completion{Text: "réponse de " + f.name, Model: f.name + "-model"}, nil
}

func (f *fakeProvider) Classify(err error) FailureKind {
	var fe fakeErr
	if errors.As(err, &fe) {
		return fe.kind
	}
	return FailureUnknown
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func newTestRouter(providers ...*fakeProvider) (*Router, *HealthTracker) {
	ranked := make([]RankedProvider, 0, len(providers))
	for i, p := range providers {
		ranked = append(ranked, RankedProvider{Provider: p, Priority: i + 1})
	}
	tracker := NewHealthTracker(ranked, 1, 30*time.Second)
	return NewRouter(tracker, time.Second, zerolog.Nop()), tracker
}

func TestGenerateStopsAtFirstSuccess(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	c := &fakeProvider{name: "c"}
	router, _ := newTestRouter(a, b, c)

	comp, provider, err := router.Generate(context.Background(), Request{Prompt: "bonjour"})
	require.NoError(t, err)
	assert.Equal(t, "a", provider)
	assert.Equal(t, "réponse de a", comp.Text)
	assert.Equal(t, 1, a.calls)
	assert.Zero(t, b.calls)
	assert.Zero(t, c.calls)
}

func TestGenerateFailsOverInPriorityOrder(t *testing.T) {
	a := &fakeProvider{name: "a", results: []error{fakeErr{FailureTransient}}}
	b := &fakeProvider{name: "b", results: []error{fakeErr{FailureRateLimited}}}
	c := &fakeProvider{name: "c"}
	router, _ := newTestRouter(a, b, c)

	comp, provider, err := router.Generate(context.Background(), Request{Prompt: "bonjour"})
	require.NoError(t, err)
	assert.Equal(t, "c", provider)
	assert.Equal(t, "réponse de c", comp.Text)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestGenerateExhaustion(t *testing.T) {
	a := &fakeProvider{name: "a", results: []error{fakeErr{FailureTransient}, fakeErr{FailureTransient}}}
	b := &fakeProvider{name: "b", results: []error{fakeErr{FailureUnknown}, fakeErr{FailureUnknown}}}
	router, tracker := newTestRouter(a, b)

	_, _, err := router.Generate(context.Background(), Request{Prompt: "bonjour"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrAllProvidersExhausted)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "a", exhausted.Attempts[0].Provider)
	assert.Equal(t, FailureTransient, exhausted.Attempts[0].Kind)
	assert.Equal(t, "b", exhausted.Attempts[1].Provider)

	// One failure recorded per attempted provider.
	for _, h := range tracker.Snapshot() {
		assert.EqualValues(t, 1, h.FailureCount, h.Name)
	}

	// Transient and unknown failures leave both providers eligible for the
	// next call.
	require.Len(t, tracker.Eligible(), 2)
}

func TestGenerateSkipsCreditExhaustedUntilReset(t *testing.T) {
	a := &fakeProvider{name: "a", results: []error{fakeErr{FailureCreditExhausted}}}
	b := &fakeProvider{name: "b"}
	router, tracker := newTestRouter(a, b)

	comp, provider, err := router.Generate(context.Background(), Request{Prompt: "un"})
	require.NoError(t, err)
	assert.Equal(t, "b", provider)
	assert.NotNil(t, comp)

	// Second call must not touch the excluded provider even though another
	// provider succeeded in between.
	_, provider, err = router.Generate(context.Background(), Request{Prompt: "deux"})
	require.NoError(t, err)
	assert.Equal(t, "b", provider)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)

	require.True(t, tracker.Reset("a"))
	_, provider, err = router.Generate(context.Background(), Request{Prompt: "trois"})
	require.NoError(t, err)
	assert.Equal(t, "a", provider)
	assert.Equal(t, 2, a.calls)
}

func TestGenerateNoEligibleProviders(t *testing.T) {
	a := &fakeProvider{name: "a", results: []error{fakeErr{FailureCreditExhausted}}}
	router, _ := newTestRouter(a)

	_, _, err := router.Generate(context.Background(), Request{Prompt: "un"})
	require.ErrorIs(t, err, ErrAllProvidersExhausted)

	_, _, err = router.Generate(context.Background(), Request{Prompt: "deux"})
	require.ErrorIs(t, err, ErrAllProvidersExhausted)
	assert.Equal(t, 1, a.calls)
}

func TestGenerateContextCancelled(t *testing.T) {
	a := &fakeProvider{name: "a"}
	router, _ := newTestRouter(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := router.Generate(ctx, Request{Prompt: "bonjour"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.calls)
}
