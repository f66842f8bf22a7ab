package httpx_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getpanelist/panelist/internal/adapter/httpx"
)

func TestTruncateForLogging(t *testing.T) {
	short := "short body"
	assert.Equal(t, short, httpx.TruncateForLogging(short))

	long := strings.Repeat("a", httpx.MaxLoggedBodyLength+50)
	truncated := httpx.TruncateForLogging(long)
	assert.Contains(t, truncated, "[truncated")
	assert.Less(t, len(truncated), len(long))
}

func TestRedactURLSecrets(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "key parameter",
			input: "https://api.example.com/v1?key=secret123&foo=bar",
			want:  "https://api.example.com/v1?key=[REDACTED]&foo=bar",
		},
		{
			name:  "token parameter",
			input: "error calling https://host/path?token=abc",
			want:  "error calling https://host/path?token=[REDACTED]",
		},
		{
			name:  "no secrets",
			input: "plain error text",
			want:  "plain error text",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpx.RedactURLSecrets(tt.input))
		})
	}
}

func TestRedactAPIKey(t *testing.T) {
	logger := httpx.NewDefaultLogger(httpx.LogLevelInfo, httpx.LogFormatHuman, true)

	assert.Equal(t, "[REDACTED-6789]", logger.RedactAPIKey("sk-123456789"))
	assert.Equal(t, "[REDACTED]", logger.RedactAPIKey("abc"))

	plain := httpx.NewDefaultLogger(httpx.LogLevelInfo, httpx.LogFormatHuman, false)
	assert.Equal(t, "sk-123456789", plain.RedactAPIKey("sk-123456789"))
}

func TestParseLogLevelAndFormat(t *testing.T) {
	assert.Equal(t, httpx.LogLevelDebug, httpx.ParseLogLevel("debug"))
	assert.Equal(t, httpx.LogLevelError, httpx.ParseLogLevel("error"))
	assert.Equal(t, httpx.LogLevelInfo, httpx.ParseLogLevel("anything"))

	assert.Equal(t, httpx.LogFormatJSON, httpx.ParseLogFormat("json"))
	assert.Equal(t, httpx.LogFormatHuman, httpx.ParseLogFormat("human"))
}
