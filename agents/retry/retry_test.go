/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/rubrics/agents/retry"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func TestDo_Success(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	result, err := retry.Do(context.Background(), testConfig(), "test_op", retry.Always, func(context.Context) (string, error) {
		attempts.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result %q, got %q", "ok", result)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	result, err := retry.Do(context.Background(), testConfig(), "test_op", retry.Always, func(context.Context) (int, error) {
		n := attempts.Add(1)
		if n < 3 {
			return 0, errors.New("429 Too Many Requests")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	t.Parallel()
	upstream := errors.New("upload failed")

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "create_batch", retry.Always, func(context.Context) (string, error) {
		attempts.Add(1)
		return "", upstream
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "create_batch failed after 3 retries") {
		t.Fatalf("unexpected error text %q", err)
	}
	if got := attempts.Load(); got != 4 {
		t.Fatalf("expected 4 attempts (1 initial + 3 retries), got %d", got)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	t.Parallel()
	permErr := errors.New("401 unauthorized")

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "test_op", func(error) bool { return false }, func(context.Context) (string, error) {
		attempts.Add(1)
		return "", permErr
	})
	if !errors.Is(err, permErr) {
		t.Fatalf("expected original error, got: %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig()
	cfg.BaseBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	_, err := retry.Do(ctx, cfg, "test_op", retry.Always, func(context.Context) (string, error) {
		cancel()
		return "", errors.New("503 Service Unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestConfigs(t *testing.T) {
	t.Parallel()

	if err := retry.Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}

	sub := retry.Submission()
	if err := sub.Validate(); err != nil {
		t.Errorf("Submission().Validate() = %v", err)
	}
	if sub.MaxRetries != 3 {
		t.Errorf("Submission().MaxRetries = %d, want 3", sub.MaxRetries)
	}
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := sub.Backoff(i); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, want)
		}
	}
	if got := sub.Backoff(100); got != sub.MaxBackoff {
		t.Errorf("Backoff(100) = %v, want cap %v", got, sub.MaxBackoff)
	}

	bad := retry.Config{MaxRetries: -1}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted negative retries")
	}
}

func TestClassifiers(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{200: false, 400: false, 401: false, 408: true, 429: true, 500: true, 503: true, 529: true} {
		if got := retry.StatusCode(code); got != want {
			t.Errorf("StatusCode(%d) = %v, want %v", code, got, want)
		}
	}
	if retry.Always(context.Canceled) {
		t.Error("Always(context.Canceled) = true")
	}
	if !retry.Always(errors.New("boom")) {
		t.Error("Always(boom) = false")
	}
}
