package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig controls retry behavior for generation calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns are error substrings worth retrying. Anything else
// fails fast.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "timeout", "temporary"},
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		if containsAny(msg, group) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// executeWithRetry runs fn with exponential backoff. The rate limiter is
// consulted before every attempt so retries do not stack on top of a
// provider that is already throttling us.
func (o *Orchestrator) executeWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := o.retry.InitialInterval

	for attempt := 0; attempt <= o.retry.MaxRetries; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryableError(lastErr) {
			return lastErr
		}
		if attempt == o.retry.MaxRetries {
			break
		}

		o.logger.Warn("generation call failed, retrying",
			"attempt", attempt+1,
			"max_retries", o.retry.MaxRetries,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > o.retry.MaxInterval {
			delay = o.retry.MaxInterval
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", o.retry.MaxRetries+1, lastErr)
}
