package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getpanelist/panelist/internal/adapter/httpx"
)

const (
	defaultBaseURL   = "https://api.openai.com"
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 8192
)

// Client is an HTTP client for the OpenAI Chat Completions API.
type Client struct {
	apiKey  string
	baseURL string
	retry   httpx.RetryConfig
	logger  httpx.Logger
	client  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(cfg httpx.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the request/response logger.
func WithLogger(logger httpx.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new OpenAI client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		retry:   httpx.DefaultRetryConfig(),
		logger:  httpx.NopLogger{},
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a single-turn prompt to the given model and returns the
// text of the first choice.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: defaultMaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	start := time.Now()
	c.logger.LogRequest(ctx, httpx.RequestLog{
		Service:   "openai",
		Operation: model,
		Timestamp: start,
		BodyChars: len(prompt),
		APIKey:    c.apiKey,
	})

	var bodyBytes []byte
	var statusCode int

	err = httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return &httpx.Error{
				Type:    httpx.ErrTypeUnknown,
				Message: reqErr.Error(),
				Service: "openai",
			}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, callErr := c.client.Do(req)
		if callErr != nil {
			return httpx.NewTimeoutError("openai", httpx.RedactURLSecrets(callErr.Error()))
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		if resp.StatusCode >= 400 {
			errBody, _ := io.ReadAll(resp.Body)
			return c.handleErrorResponse(resp.StatusCode, errBody)
		}

		bodyBytes, callErr = io.ReadAll(resp.Body)
		if callErr != nil {
			return httpx.NewTimeoutError("openai", callErr.Error())
		}
		return nil
	}, c.retry)

	if err != nil {
		c.logger.LogError(ctx, httpx.ErrorLog{
			Service:    "openai",
			Operation:  model,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
			Error:      err,
			StatusCode: statusCode,
			Retryable:  httpx.ShouldRetry(err),
		})
		return "", err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	text := chatResp.Choices[0].Message.Content

	c.logger.LogResponse(ctx, httpx.ResponseLog{
		Service:    "openai",
		Operation:  model,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		StatusCode: statusCode,
		BodyChars:  len(text),
	})

	return text, nil
}

// handleErrorResponse maps HTTP status codes to typed errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	message := fmt.Sprintf("HTTP %d", statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return httpx.FromStatusCode("openai", statusCode, message)
}
