package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedFakes(names ...string) []RankedProvider {
	out := make([]RankedProvider, 0, len(names))
	for i, name := range names {
		out = append(out, RankedProvider{Provider: &fakeProvider{name: name}, Priority: i + 1})
	}
	return out
}

func eligibleNames(t *HealthTracker) []string {
	var names []string
	for _, p := range t.Eligible() {
		names = append(names, p.Name())
	}
	return names
}

func TestEligibleOrderedByPriority(t *testing.T) {
	tracker := NewHealthTracker([]RankedProvider{
		{Provider: &fakeProvider{name: "c"}, Priority: 3},
		{Provider: &fakeProvider{name: "a"}, Priority: 1},
		{Provider: &fakeProvider{name: "b"}, Priority: 2},
	}, 1, 30*time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, eligibleNames(tracker))
}

func TestCreditExhaustionExcludesUntilReset(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a", "b"), 1, 30*time.Second)

	tracker.RecordFailure("a", FailureCreditExhausted)
	assert.Equal(t, []string{"b"}, eligibleNames(tracker))

	// Other providers succeeding does not rehabilitate it.
	tracker.RecordSuccess("b")
	assert.Equal(t, []string{"b"}, eligibleNames(tracker))

	require.True(t, tracker.Reset("a"))
	assert.Equal(t, []string{"a", "b"}, eligibleNames(tracker))
}

func TestCreditExhaustionThreshold(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a"), 3, 30*time.Second)

	tracker.RecordFailure("a", FailureCreditExhausted)
	tracker.RecordFailure("a", FailureCreditExhausted)
	assert.Equal(t, []string{"a"}, eligibleNames(tracker))

	tracker.RecordFailure("a", FailureCreditExhausted)
	assert.Empty(t, eligibleNames(tracker))
}

func TestRateLimitCooldownExpires(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a", "b"), 1, 50*time.Millisecond)

	tracker.RecordFailure("a", FailureRateLimited)
	assert.Equal(t, []string{"b"}, eligibleNames(tracker))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, eligibleNames(tracker))
}

func TestSuccessClearsCooldownAndFailures(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a"), 1, time.Hour)

	tracker.RecordFailure("a", FailureRateLimited)
	assert.Empty(t, eligibleNames(tracker))

	tracker.RecordSuccess("a")
	assert.Equal(t, []string{"a"}, eligibleNames(tracker))

	snap := tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.Zero(t, snap[0].ConsecutiveFailures)
}

func TestTransientFailuresNeverExclude(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a"), 1, 30*time.Second)

	for i := 0; i < 10; i++ {
		tracker.RecordFailure("a", FailureTransient)
	}
	assert.Equal(t, []string{"a"}, eligibleNames(tracker))
}

func TestUnknownProviderIgnored(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a"), 1, 30*time.Second)

	tracker.RecordFailure("ghost", FailureCreditExhausted)
	tracker.RecordSuccess("ghost")
	assert.False(t, tracker.Reset("ghost"))
	assert.Equal(t, []string{"a"}, eligibleNames(tracker))
}

func TestSnapshotCounters(t *testing.T) {
	tracker := NewHealthTracker(rankedFakes("a"), 1, 30*time.Second)

	tracker.RecordSuccess("a")
	tracker.RecordSuccess("a")
	tracker.RecordSuccess("a")
	tracker.RecordFailure("a", FailureTransient)

	snap := tracker.Snapshot()
	require.Len(t, snap, 1)
	h := snap[0]
	assert.EqualValues(t, 3, h.SuccessCount)
	assert.EqualValues(t, 1, h.FailureCount)
	assert.InDelta(t, 0.75, h.SuccessRate, 0.001)
	assert.Equal(t, FailureTransient, h.LastFailureKind)
	assert.NotNil(t, h.LastFailureAt)
	assert.True(t, h.Eligible)
}
