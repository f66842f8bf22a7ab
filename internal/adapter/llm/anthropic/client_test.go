package anthropic_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpanelist/panelist/internal/adapter/httpx"
	"github.com/getpanelist/panelist/internal/adapter/llm/anthropic"
)

func noRetry() httpx.RetryConfig {
	return httpx.RetryConfig{
		MaxRetries:     0,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1.0,
	}
}

func TestComplete_Success(t *testing.T) {
	// Given a server that returns two text blocks
	var gotPath, gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "hello "},
				{"type": "text", "text": "world"}
			],
			"model": "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	client := anthropic.NewClient("sk-test",
		anthropic.WithBaseURL(server.URL),
		anthropic.WithRetryConfig(noRetry()))

	// When
	text, err := client.Complete(context.Background(), "claude-sonnet-4-20250514", "say hello")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "sk-test", gotKey)
	assert.Equal(t, "2023-06-01", gotVersion)
}

func TestComplete_AuthenticationErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	client := anthropic.NewClient("bad-key",
		anthropic.WithBaseURL(server.URL),
		anthropic.WithRetryConfig(httpx.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1.0,
		}))

	_, err := client.Complete(context.Background(), "claude-sonnet-4-20250514", "hi")

	require.Error(t, err)
	var apiErr *httpx.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, httpx.ErrTypeAuthentication, apiErr.Type)
	assert.Contains(t, apiErr.Message, "invalid x-api-key")
	assert.Equal(t, 1, calls, "authentication errors must not be retried")
}

func TestComplete_OverloadedRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"model":"claude-sonnet-4-20250514","usage":{}}`))
	}))
	defer server.Close()

	client := anthropic.NewClient("sk-test",
		anthropic.WithBaseURL(server.URL),
		anthropic.WithRetryConfig(httpx.RetryConfig{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1.0,
		}))

	text, err := client.Complete(context.Background(), "claude-sonnet-4-20250514", "hi")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, calls)
}

func TestComplete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"model":"claude-sonnet-4-20250514","usage":{}}`))
	}))
	defer server.Close()

	client := anthropic.NewClient("sk-test",
		anthropic.WithBaseURL(server.URL),
		anthropic.WithRetryConfig(noRetry()))

	_, err := client.Complete(context.Background(), "claude-sonnet-4-20250514", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}
