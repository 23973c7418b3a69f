package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/models"
)

type fakeRequests struct {
	mu       sync.Mutex
	requests map[string]*models.ServiceRequest
	getErr   error
}

func newFakeRequests(reqs ...*models.ServiceRequest) *fakeRequests {
	f := &fakeRequests{requests: make(map[string]*models.ServiceRequest)}
	for _, r := range reqs {
		f.requests[r.ID] = r
	}
	return f
}

func (f *fakeRequests) ListActiveRequests(_ context.Context) ([]models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ServiceRequest, 0, len(f.requests))
	for _, r := range f.requests {
		if !r.Status.Terminal() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequests) GetRequest(_ context.Context, id string) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequests) setStatus(id string, status models.RequestStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[id].Status = status
}

func (f *fakeRequests) setGetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

type recordedNotification struct {
	userID string
	kind   models.NotificationKind
	body   interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (f *fakeNotifier) Enqueue(_ context.Context, userID string, kind models.NotificationKind, body interface{}) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recordedNotification{userID: userID, kind: kind, body: body})
	return &models.Notification{ID: models.NewID("ntf"), UserID: userID, Kind: kind}, nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) all() []recordedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedNotification(nil), f.sent...)
}

func activeRequest(id string, age time.Duration) *models.ServiceRequest {
	now := time.Now().UTC()
	return &models.ServiceRequest{
		ID:          id,
		UserID:      "237690000001",
		ServiceType: "plomberie",
		Status:      models.RequestPending,
		CreatedAt:   now.Add(-age),
		UpdatedAt:   now,
	}
}

func testConfig() config.ProactiveConfig {
	return config.ProactiveConfig{
		ScanInterval:  10 * time.Millisecond,
		CheckInterval: 10 * time.Millisecond,
		Thresholds:    []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute},
		MaxUpdates:    30,
	}
}

func TestSupervisorSpawnsOneJobPerActiveRequest(t *testing.T) {
	reqs := newFakeRequests(activeRequest("req_a", 0), activeRequest("req_b", 0))
	s := NewSupervisor(testConfig(), reqs, &fakeNotifier{}, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(s.Jobs()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Later scans must not duplicate jobs for already tracked requests.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.Jobs(), 2)
}

func TestJobStopsWhenRequestCompletes(t *testing.T) {
	reqs := newFakeRequests(activeRequest("req_a", 0))
	notifier := &fakeNotifier{}
	s := NewSupervisor(testConfig(), reqs, notifier, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && jobs[0].IterationCount >= 1
	}, 2*time.Second, 10*time.Millisecond)

	reqs.setStatus("req_a", models.RequestCompleted)

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 0 || (jobs[0].Terminal && !jobs[0].Running)
	}, 2*time.Second, 10*time.Millisecond)

	sent := notifier.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, sent, notifier.count(), "no updates after the request completed")
}

func TestJobRespectsIterationBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUpdates = 3
	cfg.Thresholds = nil

	reqs := newFakeRequests(activeRequest("req_a", 0))
	notifier := &fakeNotifier{}
	s := NewSupervisor(cfg, reqs, notifier, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && !jobs[0].Running
	}, 2*time.Second, 10*time.Millisecond)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 3, jobs[0].IterationCount)

	// The finished job must stay tracked so the request is not picked up
	// again on the next scan.
	time.Sleep(50 * time.Millisecond)
	jobs = s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 3, jobs[0].IterationCount)
	assert.Zero(t, notifier.count())
}

func TestThresholdsFireOnceEach(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds = []time.Duration{20 * time.Millisecond, 80 * time.Millisecond}

	reqs := newFakeRequests(activeRequest("req_a", 0))
	notifier := &fakeNotifier{}
	s := NewSupervisor(cfg, reqs, notifier, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return notifier.count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	sent := notifier.all()
	require.Len(t, sent, 2, "each threshold fires exactly once")

	for _, n := range sent {
		assert.Equal(t, "237690000001", n.userID)
		assert.Equal(t, models.KindStatusUpdate, n.kind)
	}
	first := sent[0].body.(StatusUpdate)
	second := sent[1].body.(StatusUpdate)
	assert.Equal(t, updateMessage(0), first.Message)
	assert.Equal(t, updateMessage(1), second.Message)
	assert.Equal(t, "req_a", first.RequestID)
}

func TestStaleRequestGetsOnlyLatestThreshold(t *testing.T) {
	reqs := newFakeRequests(activeRequest("req_a", time.Hour))
	notifier := &fakeNotifier{}
	s := NewSupervisor(testConfig(), reqs, notifier, zerolog.Nop())

	j := &job{requestID: "req_a", notified: make([]bool, len(s.thresholds))}
	done := s.iterate(context.Background(), j)

	require.False(t, done)
	sent := notifier.all()
	require.Len(t, sent, 1, "crossing several thresholds at once sends a single update")
	update := sent[0].body.(StatusUpdate)
	assert.Equal(t, updateMessage(2), update.Message)
	assert.Equal(t, 60, update.ElapsedMinutes)

	// The skipped lower thresholds are spent and never fire later.
	done = s.iterate(context.Background(), j)
	require.False(t, done)
	assert.Equal(t, 1, notifier.count())
}

func TestCancelStopsJobWithoutWaitingForTick(t *testing.T) {
	cfg := testConfig()
	cfg.CheckInterval = 10 * time.Second

	reqs := newFakeRequests(activeRequest("req_a", 0))
	s := NewSupervisor(cfg, reqs, &fakeNotifier{}, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && jobs[0].Running
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.True(t, s.Cancel("req_a"))

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && !jobs[0].Running
	}, 2*time.Second, 10*time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must not wait out the sleep")

	assert.False(t, s.Cancel("req_unknown"))
}

func TestFetchErrorSkipsIterationWithoutKillingJob(t *testing.T) {
	reqs := newFakeRequests(activeRequest("req_a", 0))
	notifier := &fakeNotifier{}
	s := NewSupervisor(testConfig(), reqs, notifier, zerolog.Nop())

	j := &job{requestID: "req_a", notified: make([]bool, len(s.thresholds))}

	reqs.setGetError(errors.New("store unavailable"))
	require.False(t, s.iterate(context.Background(), j))
	assert.Zero(t, notifier.count())
	assert.False(t, j.terminal)

	reqs.setGetError(nil)
	reqs.setStatus("req_a", models.RequestCompleted)
	require.True(t, s.iterate(context.Background(), j))
	assert.True(t, j.terminal)
}

func TestJobStopsWhenRequestDisappears(t *testing.T) {
	reqs := newFakeRequests()
	s := NewSupervisor(testConfig(), reqs, &fakeNotifier{}, zerolog.Nop())

	j := &job{requestID: "req_gone", notified: make([]bool, len(s.thresholds))}
	assert.True(t, s.iterate(context.Background(), j))
}
