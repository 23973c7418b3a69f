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

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)
		require.NotNil(t, req.SystemInstruction)

		fmt.Fprint(w, `{
			"candidates": [{"content": {"parts": [{"text": "Je peux vous aider."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5}
		}`)
	}))
	defer srv.Close()

	p := NewGemini(Options{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: srv.URL})
	comp, err := p.Complete(context.Background(), Request{System: "assistant", Prompt: "bonjour"})
	require.NoError(t, err)
	assert.Equal(t, "Je peux vous aider.", comp.Text)
	assert.Equal(t, 10, comp.InputTokens)
	assert.Equal(t, 5, comp.OutputTokens)
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	p := NewGemini(Options{APIKey: "k", Model: "gemini-2.0-flash", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), Request{Prompt: "bonjour"})
	require.Error(t, err)
}

func TestGeminiAPIErrorParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"You exceeded your current quota, please check your plan and billing details.","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	p := NewGemini(Options{APIKey: "k", Model: "gemini-2.0-flash", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), Request{Prompt: "bonjour"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Type)
	assert.Equal(t, FailureCreditExhausted, p.Classify(err))
}

func TestGeminiClassify(t *testing.T) {
	p := NewGemini(Options{APIKey: "k", Model: "m"})

	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			"quota exhausted",
			&APIError{Provider: "gemini", StatusCode: 429, Type: "RESOURCE_EXHAUSTED", Message: "You exceeded your current quota, please check your plan and billing details."},
			FailureCreditExhausted,
		},
		{
			"resource exhausted without billing wording",
			&APIError{Provider: "gemini", StatusCode: 429, Type: "RESOURCE_EXHAUSTED", Message: "Resource has been exhausted (e.g. check rate limit)."},
			FailureRateLimited,
		},
		{
			"too many requests",
			&APIError{Provider: "gemini", StatusCode: http.StatusTooManyRequests, Type: "UNAVAILABLE", Message: "try later"},
			FailureRateLimited,
		},
		{
			"server error",
			&APIError{Provider: "gemini", StatusCode: http.StatusServiceUnavailable, Type: "UNAVAILABLE", Message: "overloaded"},
			FailureTransient,
		},
		{
			"invalid argument",
			&APIError{Provider: "gemini", StatusCode: http.StatusBadRequest, Type: "INVALID_ARGUMENT", Message: "bad model"},
			FailureUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Classify(tc.err))
		})
	}
}
