package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
		assert.Equal(t, "tu es un assistant", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		fmt.Fprint(w, `{
			"model": "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Bonjour ! "}, {"type": "text", "text": "Comment puis-je aider ?"}],
			"usage": {"input_tokens": 12, "output_tokens": 8}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropic(Options{APIKey: "test-key", Model: "claude-sonnet-4-20250514", BaseURL: srv.URL})
	comp, err := p.Complete(context.Background(), Request{System: "tu es un assistant", Prompt: "bonjour"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour ! Comment puis-je aider ?", comp.Text)
	assert.Equal(t, 12, comp.InputTokens)
	assert.Equal(t, 8, comp.OutputTokens)
}

func TestAnthropicAPIErrorParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`)
	}))
	defer srv.Close()

	p := NewAnthropic(Options{APIKey: "test-key", Model: "m", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), Request{Prompt: "bonjour"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate_limit_error", apiErr.Type)
	assert.Equal(t, FailureRateLimited, p.Classify(err))
}

func TestAnthropicClassify(t *testing.T) {
	p := NewAnthropic(Options{APIKey: "k", Model: "m"})

	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			"payment required",
			&APIError{Provider: "anthropic", StatusCode: http.StatusPaymentRequired, Type: "invalid_request_error", Message: "payment required"},
			FailureCreditExhausted,
		},
		{
			"credit balance message",
			&APIError{Provider: "anthropic", StatusCode: http.StatusBadRequest, Type: "invalid_request_error", Message: "Your credit balance is too low to access the Anthropic API"},
			FailureCreditExhausted,
		},
		{
			"rate limit",
			&APIError{Provider: "anthropic", StatusCode: http.StatusTooManyRequests, Type: "rate_limit_error", Message: "slow down"},
			FailureRateLimited,
		},
		{
			"overloaded",
			&APIError{Provider: "anthropic", StatusCode: 529, Type: "overloaded_error", Message: "overloaded"},
			FailureTransient,
		},
		{
			"server error",
			&APIError{Provider: "anthropic", StatusCode: http.StatusInternalServerError, Type: "api_error", Message: "boom"},
			FailureTransient,
		},
		{
			"bad request",
			&APIError{Provider: "anthropic", StatusCode: http.StatusBadRequest, Type: "invalid_request_error", Message: "max_tokens required"},
			FailureUnknown,
		},
		{
			"timeout",
			fmt.Errorf("anthropic request: %w", context.DeadlineExceeded),
			FailureTransient,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Classify(tc.err))
		})
	}
}
