package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/djobea/djobea-ai/internal/config"
	"github.com/djobea/djobea-ai/internal/models"
	"github.com/djobea/djobea-ai/internal/signing"
)

type SendResult struct {
	StatusCode   int
	ResponseBody string
	LatencyMs    int64
	Error        string
}

// Transport pushes one notification to the user's channel. Implementations
// report the outcome instead of returning an error so the worker can record
// every attempt uniformly.
type Transport interface {
	Name() string
	Send(ctx context.Context, n *models.Notification) *SendResult
}

// NewTransport selects the delivery channel from config. The log transport
// is the default and needs no credentials.
func NewTransport(cfg config.NotifyConfig, log zerolog.Logger) (Transport, error) {
	switch cfg.Transport {
	case "", "log":
		return NewLogTransport(log), nil
	case "webhook":
		if cfg.Webhook.URL == "" {
			return nil, fmt.Errorf("webhook transport requires notify.webhook.url")
		}
		return NewWebhookTransport(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown notify transport %q", cfg.Transport)
	}
}

// webhookEnvelope is the wire shape posted to the downstream messaging
// gateway, which owns the actual WhatsApp session.
type webhookEnvelope struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      string          `json:"kind"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

type WebhookTransport struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookTransport(url, secret string, timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (t *WebhookTransport) Name() string { return "webhook" }

func (t *WebhookTransport) Send(ctx context.Context, n *models.Notification) *SendResult {
	start := time.Now()

	payload, err := json.Marshal(webhookEnvelope{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      string(n.Kind),
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("failed to encode envelope: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	signature, timestamp := signing.Sign(t.secret, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("failed to create request: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DjobeaAI/1.0")
	req.Header.Set("X-Djobea-ID", n.ID)
	req.Header.Set("X-Djobea-Timestamp", fmt.Sprintf("%d", timestamp))
	req.Header.Set("X-Djobea-Signature", signature)

	resp, err := t.client.Do(req)
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("request failed: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	return &SendResult{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
		LatencyMs:    time.Since(start).Milliseconds(),
	}
}

// LogTransport writes notifications to the service log and reports success.
// Useful in development and wherever the messaging gateway is not wired yet.
type LogTransport struct {
	log zerolog.Logger
}

func NewLogTransport(log zerolog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, n *models.Notification) *SendResult {
	start := time.Now()
	t.log.Info().
		Str("notification_id", n.ID).
		Str("user_id", n.UserID).
		Str("kind", string(n.Kind)).
		RawJSON("body", n.Body).
		Msg("notification delivered to log")
	return &SendResult{
		StatusCode: http.StatusOK,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}
