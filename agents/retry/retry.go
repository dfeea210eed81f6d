/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry runs upstream calls with exponential backoff and jitter.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var retries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rubric_upstream_retries_total",
		Help: "Retried upstream calls, by operation",
	},
	[]string{"operation"},
)

// Config configures retry behavior for upstream calls.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	// 0 means do not retry at all.
	MaxRetries int
	// BaseBackoff is the delay before the first retry; it doubles on every
	// later retry.
	BaseBackoff time.Duration
	// MaxBackoff caps the doubled delay.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of the random delay added to each backoff.
	MaxJitter time.Duration
}

// Validate checks that the retry configuration has valid values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.BaseBackoff < 0 {
		return errors.New("base backoff cannot be negative")
	}
	if c.MaxBackoff < 0 {
		return errors.New("max backoff cannot be negative")
	}
	if c.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// Default is used for single annotation calls. Rate limits on chat APIs often
// need tens of seconds to clear, so the cap is generous.
func Default() Config {
	return Config{
		MaxRetries:  5,
		BaseBackoff: time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Submission is used for batch file uploads and batch creation: three
// retries, one second doubling.
func Submission() Config {
	return Config{
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based), without jitter.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt > 30 {
		return c.MaxBackoff
	}
	return min(c.BaseBackoff<<attempt, c.MaxBackoff)
}

// Do calls fn until it succeeds, fails with an error isRetryable rejects,
// or MaxRetries is exhausted. The final error wraps the last failure.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) {
			return result, lastErr
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.Backoff(attempt) + jitter(cfg.MaxJitter)
		retries.WithLabelValues(operation).Inc()
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", delay).
			With("error", lastErr.Error()).
			Warn("Upstream call failed, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// Always treats every error as retryable except context cancellation.
func Always(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// StatusCode reports whether an HTTP status from an LLM provider is worth
// retrying: timeouts, rate limits, server errors and Anthropic's 529
// overloaded status.
func StatusCode(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
		return true
	}
	return false
}
