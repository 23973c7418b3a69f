package llm

import (
	"context"
	"time"
)

type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Options configures a single backend client.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Classify maps an error returned by this provider's Complete to a
	// failure kind. Each backend knows its own API's error shapes.
	Classify(err error) FailureKind
	HealthCheck(ctx context.Context) error
}
