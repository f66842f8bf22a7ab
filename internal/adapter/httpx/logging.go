package httpx

import (
	"fmt"
	"regexp"
)

const (
	// MaxLoggedBodyLength is the maximum length of response text to include
	// in logs. Responses longer than this are truncated to keep source code
	// and secrets out of log aggregators.
	MaxLoggedBodyLength = 200
)

// TruncateForLogging safely truncates a response string for logging.
// Returns the first MaxLoggedBodyLength characters plus a truncation
// indicator if truncated.
func TruncateForLogging(body string) string {
	if len(body) <= MaxLoggedBodyLength {
		return body
	}
	return body[:MaxLoggedBodyLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(body))
}

// RedactURLSecrets redacts API keys and other secrets from URLs in error
// messages. Query parameters like ?key=, ?token= and friends otherwise
// leak into error text verbatim.
//
// Example:
//
//	input:  "https://api.example.com/endpoint?key=secret123&foo=bar"
//	output: "https://api.example.com/endpoint?key=[REDACTED]&foo=bar"
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}

	patterns := []string{
		`key=([^&"\s]+)`,
		`apiKey=([^&"\s]+)`,
		`api_key=([^&"\s]+)`,
		`token=([^&"\s]+)`,
		`access_token=([^&"\s]+)`,
	}

	result := text
	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		paramName := pattern[:len(pattern)-len(`=([^&"\s]+)`)]
		result = re.ReplaceAllString(result, paramName+"=[REDACTED]")
	}

	return result
}
