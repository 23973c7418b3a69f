package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/metrics"
	"github.com/djobea/djobea-ai/internal/models"
)

// RequestSource is the read-only view of the request store the scheduler
// needs.
type RequestSource interface {
	ListActiveRequests(ctx context.Context) ([]models.ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error)
}

// Notifier enqueues notifications for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, userID string, kind models.NotificationKind, body interface{}) (*models.Notification, error)
}

// StatusUpdate is the notification body pushed when a waiting threshold is
// crossed.
type StatusUpdate struct {
	RequestID      string `json:"request_id"`
	ServiceType    string `json:"service_type"`
	Status         string `json:"status"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
	Message        string `json:"message"`
}

var updateMessages = []string{
	"Nous recherchons activement un technicien pour votre demande. Merci de patienter quelques instants.",
	"La recherche prend un peu plus de temps que prévu. Nous continuons à contacter des techniciens disponibles.",
	"Nous élargissons la recherche à d'autres techniciens de votre zone. Merci pour votre patience.",
	"Votre demande est toujours active. Un conseiller suit personnellement la recherche.",
	"Nous sommes désolés pour l'attente. Votre demande reste prioritaire et nous vous informons dès qu'un technicien accepte.",
}

func updateMessage(idx int) string {
	if idx >= len(updateMessages) {
		idx = len(updateMessages) - 1
	}
	return updateMessages[idx]
}

// job is one per-request update loop. The struct outlives its goroutine: it
// stays in the supervisor's map as long as the request is active so a
// finished job is never respawned.
type job struct {
	requestID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu            sync.Mutex
	iterations    int
	lastCheckedAt time.Time
	terminal      bool
	notified      []bool
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// JobStatus is a point-in-time snapshot of one update loop.
type JobStatus struct {
	RequestID      string    `json:"request_id"`
	IterationCount int       `json:"iteration_count"`
	LastCheckedAt  time.Time `json:"last_checked_at,omitempty"`
	Terminal       bool      `json:"terminal"`
	Running        bool      `json:"running"`
}

// Supervisor owns every proactive update job. It scans the request store and
// keeps exactly one job per active request, tearing a job down once its
// request leaves the active set.
type Supervisor struct {
	requests      RequestSource
	queue         Notifier
	scanInterval  time.Duration
	checkInterval time.Duration
	thresholds    []time.Duration
	maxUpdates    int
	log           zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*job

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSupervisor(cfg config.ProactiveConfig, requests RequestSource, queue Notifier, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		requests:      requests,
		queue:         queue,
		scanInterval:  cfg.ScanInterval,
		checkInterval: cfg.CheckInterval,
		thresholds:    cfg.Thresholds,
		maxUpdates:    cfg.MaxUpdates,
		log:           log,
		jobs:          make(map[string]*job),
		stop:          make(chan struct{}),
	}
}

func (s *Supervisor) Start(ctx context.Context) {
	s.log.Info().
		Dur("scan_interval", s.scanInterval).
		Dur("check_interval", s.checkInterval).
		Int("max_updates", s.maxUpdates).
		Msg("starting proactive update supervisor")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scanLoop(ctx)
	}()
}

func (s *Supervisor) Stop() {
	s.log.Info().Msg("stopping proactive update supervisor")
	close(s.stop)
	s.mu.Lock()
	for _, j := range s.jobs {
		j.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info().Msg("proactive update supervisor stopped")
}

// Cancel stops the update loop for one request. The job's map entry stays
// behind so the next scan does not bring the loop back.
func (s *Supervisor) Cancel(requestID string) bool {
	s.mu.Lock()
	j, ok := s.jobs[requestID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	s.log.Info().Str("request_id", requestID).Msg("proactive update job cancelled")
	return true
}

// Jobs returns a snapshot of every tracked job, running or finished.
func (s *Supervisor) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		out = append(out, JobStatus{
			RequestID:      j.requestID,
			IterationCount: j.iterations,
			LastCheckedAt:  j.lastCheckedAt,
			Terminal:       j.terminal,
			Running:        !j.finished(),
		})
		j.mu.Unlock()
	}
	return out
}

func (s *Supervisor) scanLoop(ctx context.Context) {
	// Jobs live in memory only; the first scan rebuilds them from the active
	// request list after a restart.
	s.scan(ctx)

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Supervisor) scan(ctx context.Context) {
	active, err := s.requests.ListActiveRequests(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list active requests")
		return
	}

	activeIDs := make(map[string]struct{}, len(active))
	for _, r := range active {
		activeIDs[r.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, j := range s.jobs {
		if _, stillActive := activeIDs[id]; !stillActive && j.finished() {
			delete(s.jobs, id)
		}
	}

	for _, r := range active {
		if _, exists := s.jobs[r.ID]; exists {
			continue
		}
		s.spawnLocked(ctx, r)
	}
}

func (s *Supervisor) spawnLocked(ctx context.Context, r models.ServiceRequest) {
	jctx, cancel := context.WithCancel(ctx)
	j := &job{
		requestID: r.ID,
		cancel:    cancel,
		done:      make(chan struct{}),
		notified:  make([]bool, len(s.thresholds)),
	}
	s.jobs[r.ID] = j

	metrics.ProactiveJobs.Inc()
	s.log.Info().Str("request_id", r.ID).Str("service_type", r.ServiceType).Msg("proactive update job started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(j.done)
		defer metrics.ProactiveJobs.Dec()
		s.run(jctx, j)
	}()
}

func (s *Supervisor) run(ctx context.Context, j *job) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if s.iterate(ctx, j) {
				return
			}
		}
	}
}

// iterate runs one check for a job and reports whether the job is done.
// The iteration counts even when the request fetch fails, so a permanently
// broken lookup still drains the iteration budget instead of looping forever.
func (s *Supervisor) iterate(ctx context.Context, j *job) bool {
	j.mu.Lock()
	j.iterations++
	j.lastCheckedAt = time.Now().UTC()
	iterations := j.iterations
	j.mu.Unlock()

	r, err := s.requests.GetRequest(ctx, j.requestID)
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", j.requestID).Msg("request lookup failed, skipping iteration")
		return iterations >= s.maxUpdates
	}
	if r == nil {
		s.log.Warn().Str("request_id", j.requestID).Msg("request disappeared, stopping job")
		return true
	}

	if r.Status.Terminal() {
		j.mu.Lock()
		j.terminal = true
		j.mu.Unlock()
		s.log.Info().
			Str("request_id", j.requestID).
			Str("status", string(r.Status)).
			Int("iterations", iterations).
			Msg("request reached terminal state, stopping job")
		return true
	}

	s.checkThresholds(ctx, j, r)

	if iterations >= s.maxUpdates {
		s.log.Info().Str("request_id", j.requestID).Int("iterations", iterations).Msg("iteration budget exhausted, stopping job")
		return true
	}
	return false
}

// checkThresholds fires at most one status update per iteration: the highest
// crossed threshold not yet notified for. Lower thresholds crossed in the
// same window are marked done without a notification of their own, so a job
// picking up an old request does not flood the user.
func (s *Supervisor) checkThresholds(ctx context.Context, j *job, r *models.ServiceRequest) {
	elapsed := time.Since(r.CreatedAt)

	j.mu.Lock()
	fire := -1
	for i, th := range s.thresholds {
		if elapsed >= th && !j.notified[i] {
			fire = i
		}
	}
	if fire >= 0 {
		for i := 0; i <= fire; i++ {
			j.notified[i] = true
		}
	}
	j.mu.Unlock()

	if fire < 0 {
		return
	}

	update := StatusUpdate{
		RequestID:      r.ID,
		ServiceType:    r.ServiceType,
		Status:         string(r.Status),
		ElapsedMinutes: int(elapsed.Minutes()),
		Message:        updateMessage(fire),
	}

	if _, err := s.queue.Enqueue(ctx, r.UserID, models.KindStatusUpdate, update); err != nil {
		s.log.Error().Err(err).Str("request_id", r.ID).Msg("failed to enqueue status update")
		j.mu.Lock()
		j.notified[fire] = false
		j.mu.Unlock()
		return
	}

	s.log.Info().
		Str("request_id", r.ID).
		Dur("elapsed", elapsed).
		Int("threshold", fire).
		Msg("status update enqueued")
}
