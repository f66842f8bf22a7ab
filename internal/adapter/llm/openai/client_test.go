package openai_test

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
	"github.com/getpanelist/panelist/internal/adapter/llm/openai"
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
	// Given
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}
			],
			"usage": {"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6}
		}`))
	}))
	defer server.Close()

	client := openai.NewClient("sk-test",
		openai.WithBaseURL(server.URL),
		openai.WithRetryConfig(noRetry()))

	// When
	text, err := client.Complete(context.Background(), "gpt-4o", "say hi")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestComplete_RateLimitRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	client := openai.NewClient("sk-test",
		openai.WithBaseURL(server.URL),
		openai.WithRetryConfig(httpx.RetryConfig{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1.0,
		}))

	text, err := client.Complete(context.Background(), "gpt-4o", "hi")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, calls)
}

func TestComplete_InvalidRequestFailsImmediately(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := openai.NewClient("sk-test",
		openai.WithBaseURL(server.URL),
		openai.WithRetryConfig(httpx.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1.0,
		}))

	_, err := client.Complete(context.Background(), "gpt-nope", "hi")

	require.Error(t, err)
	var apiErr *httpx.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, httpx.ErrTypeInvalidRequest, apiErr.Type)
	assert.Equal(t, 1, calls)
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := openai.NewClient("sk-test",
		openai.WithBaseURL(server.URL),
		openai.WithRetryConfig(noRetry()))

	_, err := client.Complete(context.Background(), "gpt-4o", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
