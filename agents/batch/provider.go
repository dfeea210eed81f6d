/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"context"
	"io"
	"slices"
)

// Normalized batch statuses. Providers map their own vocabulary onto these.
const (
	StatusValidating = "validating"
	StatusInProgress = "in_progress"
	StatusFinalizing = "finalizing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelling = "cancelling"
	StatusCancelled  = "cancelled"
	StatusExpired    = "expired"
)

var terminal = []string{StatusCompleted, StatusFailed, StatusCancelled, StatusExpired}

// Terminal reports whether status is final.
func Terminal(status string) bool {
	return slices.Contains(terminal, status)
}

// Shard is one provider batch worth of input lines.
type Shard struct {
	// Index numbers the shard within its store.
	Index int
	// Name is a unique upload name for the shard's input file.
	Name     string
	Endpoint string
	Lines    []Line
	// Data is the NDJSON encoding of Lines, newline terminated.
	Data []byte
}

// RequestCounts are the per-batch progress counters reported by a provider.
type RequestCounts struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Job is the provider's view of a batch.
type Job struct {
	ID           string
	Status       string
	OutputFileID string
	ErrorFileID  string
	Counts       RequestCounts
}

// Provider is a backend batch API.
type Provider interface {
	// Name identifies the backend in metadata, e.g. "openai".
	Name() string
	// Create uploads the shard and starts a batch for it. The returned
	// metadata carries at least BatchID, Status and CreatedAt.
	Create(ctx context.Context, shard *Shard) (*Metadata, error)
	// Retrieve fetches the current state of a batch.
	Retrieve(ctx context.Context, batchID string) (*Job, error)
	// Results returns the output of a completed batch as NDJSON lines of
	// the form {"custom_id", "response": {"status_code", "body"}, "error"}.
	Results(ctx context.Context, job *Job) (io.ReadCloser, error)
}

// ErrorReporter is implemented by providers that keep failed lines in a
// separate file. Errors returns nil when the job has none.
type ErrorReporter interface {
	Errors(ctx context.Context, job *Job) (io.ReadCloser, error)
}

// Retryable is implemented by providers that classify their own errors for
// submission retries. Without it every error except cancellation is retried.
type Retryable interface {
	IsRetryable(err error) bool
}
