package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/djobea/djobea-ai/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			attempt_count INTEGER NOT NULL DEFAULT 0,
			next_attempt_at DATETIME,
			last_attempt_at DATETIME,
			read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			notification_id TEXT NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
			attempt_number INTEGER NOT NULL,
			status_code INTEGER NOT NULL DEFAULT 0,
			response_body TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			slots TEXT NOT NULL DEFAULT '{}',
			reply TEXT NOT NULL,
			suggestions TEXT NOT NULL DEFAULT '[]',
			provider TEXT NOT NULL DEFAULT '',
			fallback INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS service_requests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			service_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, next_attempt_at) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_notification ON attempts(notification_id)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON conversation_turns(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON service_requests(status)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Notifications ---

func (s *SQLiteStorage) CreateNotification(ctx context.Context, n *models.Notification) error {
	read := 0
	if n.Read {
		read = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, kind, body, status, attempt_count, next_attempt_at, last_attempt_at, read, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Kind, string(n.Body), n.Status, n.AttemptCount, n.NextAttemptAt, n.LastAttemptAt, read, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanNotification(row interface{ Scan(...interface{}) error }) (*models.Notification, error) {
	var n models.Notification
	var body string
	var read int
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &body, &n.Status, &n.AttemptCount, &n.NextAttemptAt, &n.LastAttemptAt, &read, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Body = json.RawMessage(body)
	n.Read = read == 1
	return &n, nil
}

func (s *SQLiteStorage) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, body, status, attempt_count, next_attempt_at, last_attempt_at, read, created_at, updated_at
		 FROM notifications WHERE id = ?`, id)
	n, err := s.scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

func (s *SQLiteStorage) PollNotifications(ctx context.Context, userID string, since time.Time) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, body, status, attempt_count, next_attempt_at, last_attempt_at, read, created_at, updated_at
		 FROM notifications
		 WHERE user_id = ? AND created_at > ?
		 ORDER BY created_at ASC, rowid ASC`,
		userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []models.Notification
	for rows.Next() {
		n, err := s.scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

func (s *SQLiteStorage) GetDueNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, body, status, attempt_count, next_attempt_at, last_attempt_at, read, created_at, updated_at
		 FROM notifications
		 WHERE status = 'pending' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY created_at ASC, rowid ASC LIMIT ?`,
		time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []models.Notification
	for rows.Next() {
		n, err := s.scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

func (s *SQLiteStorage) UpdateNotification(ctx context.Context, n *models.Notification) error {
	read := 0
	if n.Read {
		read = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, attempt_count = ?, next_attempt_at = ?, last_attempt_at = ?, read = ?, updated_at = ? WHERE id = ?`,
		n.Status, n.AttemptCount, n.NextAttemptAt, n.LastAttemptAt, read, time.Now().UTC(), n.ID,
	)
	return err
}

func (s *SQLiteStorage) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

func (s *SQLiteStorage) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = ? WHERE user_id = ? AND read = 0`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) RequeueFailed(ctx context.Context, userID string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'pending', next_attempt_at = ?, updated_at = ? WHERE user_id = ? AND status = 'failed'`,
		now, now, userID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) ExpireNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'expired', updated_at = ? WHERE status = 'pending' AND created_at < ?`,
		time.Now().UTC(), olderThan.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Attempts ---

func (s *SQLiteStorage) CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, notification_id, attempt_number, status_code, response_body, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.NotificationID, a.AttemptNumber, a.StatusCode, a.ResponseBody, a.LatencyMs, a.Error, a.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) GetAttemptsByNotification(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, notification_id, attempt_number, status_code, response_body, latency_ms, error, created_at
		 FROM attempts WHERE notification_id = ? ORDER BY attempt_number`, notificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		if err := rows.Scan(&a.ID, &a.NotificationID, &a.AttemptNumber, &a.StatusCode, &a.ResponseBody, &a.LatencyMs, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// --- Conversation turns ---

func (s *SQLiteStorage) CreateTurn(ctx context.Context, t *models.ConversationTurn) error {
	suggestions, _ := json.Marshal(t.Suggestions)
	slots := string(t.Slots)
	if slots == "" {
		slots = "{}"
	}
	fallback := 0
	if t.Fallback {
		fallback = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (id, session_id, user_id, user_message, slots, reply, suggestions, provider, fallback, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.UserID, t.UserMessage, slots, t.Reply, string(suggestions), t.Provider, fallback, t.LatencyMs, t.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) ListTurnsBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	// Newest N turns, returned oldest first.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, user_message, slots, reply, suggestions, provider, fallback, latency_ms, created_at FROM (
			SELECT id, session_id, user_id, user_message, slots, reply, suggestions, provider, fallback, latency_ms, created_at, rowid AS rid
			FROM conversation_turns WHERE session_id = ? ORDER BY created_at DESC, rid DESC LIMIT ?
		 ) ORDER BY created_at ASC, rid ASC`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		var slots, suggestions string
		var fallback int
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.UserMessage, &slots, &t.Reply, &suggestions, &t.Provider, &fallback, &t.LatencyMs, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Slots = json.RawMessage(slots)
		json.Unmarshal([]byte(suggestions), &t.Suggestions)
		t.Fallback = fallback == 1
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// --- Service requests ---

func (s *SQLiteStorage) UpsertRequest(ctx context.Context, r *models.ServiceRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO service_requests (id, user_id, service_type, description, location, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			service_type = excluded.service_type,
			description = excluded.description,
			location = excluded.location,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.ID, r.UserID, r.ServiceType, r.Description, r.Location, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, service_type, description, location, status, created_at, updated_at
		 FROM service_requests WHERE id = ?`, id,
	).Scan(&r.ID, &r.UserID, &r.ServiceType, &r.Description, &r.Location, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStorage) ListActiveRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, service_type, description, location, status, created_at, updated_at
		 FROM service_requests
		 WHERE status NOT IN ('completed', 'cancelled')
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.ServiceRequest
	for rows.Next() {
		var r models.ServiceRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.ServiceType, &r.Description, &r.Location, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// --- Retention ---

func (s *SQLiteStorage) PurgeNotifications(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE status IN ('delivered', 'failed', 'expired') AND created_at < ?`,
		before.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) PurgeAttempts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) PurgeTurns(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_turns WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Stats ---

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_turns`).Scan(&stats.TotalTurns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&stats.TotalNotifications)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE status = 'delivered'`).Scan(&stats.DeliveredCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE status = 'failed'`).Scan(&stats.FailedCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE status = 'pending'`).Scan(&stats.PendingCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE status = 'expired'`).Scan(&stats.ExpiredCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_requests WHERE status NOT IN ('completed', 'cancelled')`).Scan(&stats.ActiveRequests)

	if stats.TotalNotifications > 0 {
		stats.SuccessRate = float64(stats.DeliveredCount) / float64(stats.TotalNotifications) * 100
	}

	return stats, nil
}
