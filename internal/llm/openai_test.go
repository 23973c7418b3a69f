package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Bien sûr."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Options{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1"})
	comp, err := p.Complete(context.Background(), Request{System: "assistant", Prompt: "bonjour"})
	require.NoError(t, err)
	assert.Equal(t, "Bien sûr.", comp.Text)
	assert.Equal(t, 9, comp.InputTokens)
	assert.Equal(t, 3, comp.OutputTokens)
}

func TestOpenAIClassify(t *testing.T) {
	p := NewOpenAI(Options{APIKey: "k", Model: "m"})

	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			"insufficient quota",
			&openai.APIError{Code: "insufficient_quota", Type: "insufficient_quota", HTTPStatusCode: http.StatusTooManyRequests},
			FailureCreditExhausted,
		},
		{
			"rate limited",
			&openai.APIError{Code: "rate_limit_exceeded", Type: "requests", HTTPStatusCode: http.StatusTooManyRequests},
			FailureRateLimited,
		},
		{
			"server error",
			&openai.APIError{Type: "server_error", HTTPStatusCode: http.StatusInternalServerError},
			FailureTransient,
		},
		{
			"auth error",
			&openai.APIError{Code: "invalid_api_key", Type: "invalid_request_error", HTTPStatusCode: http.StatusUnauthorized},
			FailureUnknown,
		},
		{
			"request error 503",
			&openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable, Err: fmt.Errorf("bad gateway")},
			FailureTransient,
		},
		{
			"timeout",
			fmt.Errorf("do request: %w", context.DeadlineExceeded),
			FailureTransient,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Classify(tc.err))
		})
	}
}
