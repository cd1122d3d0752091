package agent

import (
	"strings"
	"time"
)

// RetryConfig configures the bounded retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int           // Retry attempts beyond the first call
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Backoff ceiling
}

// DefaultRetryConfig returns the bounded budget for language-model calls:
// one retry with backoff. The orchestrator owns any further regeneration
// decisions.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      1,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// retryableError reports whether a model-call error should trigger a
// retry. Malformed output is handled separately and never retried here.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limits and transient server errors.
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}
	if containsAny(errStr, "500", "502", "503", "504", "unavailable", "overloaded") {
		return true
	}
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
