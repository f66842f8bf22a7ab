package anthropic

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
	defaultBaseURL          = "https://api.anthropic.com"
	defaultTimeout          = 60 * time.Second
	defaultMaxTokens        = 8192
	defaultAnthropicVersion = "2023-06-01"
)

// Client is an HTTP client for the Anthropic Messages API.
type Client struct {
	apiKey  string
	baseURL string
	retry   httpx.RetryConfig
	logger  httpx.Logger
	client  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (self-hosted proxies, tests).
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

// NewClient creates a new Anthropic client.
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
// concatenated text blocks of the response.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	reqBody := MessagesRequest{
		Model: model,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens: defaultMaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/messages"
	start := time.Now()
	c.logger.LogRequest(ctx, httpx.RequestLog{
		Service:   "anthropic",
		Operation: model,
		Timestamp: start,
		BodyChars: len(prompt),
		APIKey:    c.apiKey,
	})

	var bodyBytes []byte
	var statusCode int

	err = httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		// Recreate the request each attempt; the body reader is consumed.
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return &httpx.Error{
				Type:    httpx.ErrTypeUnknown,
				Message: reqErr.Error(),
				Service: "anthropic",
			}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", defaultAnthropicVersion)

		resp, callErr := c.client.Do(req)
		if callErr != nil {
			return httpx.NewTimeoutError("anthropic", httpx.RedactURLSecrets(callErr.Error()))
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		if resp.StatusCode >= 400 {
			errBody, _ := io.ReadAll(resp.Body)
			return c.handleErrorResponse(resp.StatusCode, errBody)
		}

		bodyBytes, callErr = io.ReadAll(resp.Body)
		if callErr != nil {
			return httpx.NewTimeoutError("anthropic", callErr.Error())
		}
		return nil
	}, c.retry)

	if err != nil {
		c.logger.LogError(ctx, httpx.ErrorLog{
			Service:    "anthropic",
			Operation:  model,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
			Error:      err,
			StatusCode: statusCode,
			Retryable:  httpx.ShouldRetry(err),
		})
		return "", err
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(bodyBytes, &messagesResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(messagesResp.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var textParts []string
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	text := strings.Join(textParts, "")

	c.logger.LogResponse(ctx, httpx.ResponseLog{
		Service:    "anthropic",
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

	// 529 is Anthropic-specific: overloaded.
	if statusCode == 529 {
		e := httpx.NewServiceUnavailableError("anthropic", message)
		e.StatusCode = statusCode
		return e
	}

	return httpx.FromStatusCode("anthropic", statusCode, message)
}
