/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaibatch is a batch.Provider for the OpenAI Files and Batches
// APIs, or any proxy that serves them.
package openaibatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/retry"
	"github.com/openai/openai-go"
)

// Provider uploads shards as batch input files and creates 24h batches.
type Provider struct {
	client openai.Client
}

var (
	_ batch.Provider      = (*Provider)(nil)
	_ batch.ErrorReporter = (*Provider)(nil)
	_ batch.Retryable     = (*Provider)(nil)
)

// New returns a Provider over client.
func New(client openai.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string { return "openai" }

// Create uploads the shard with purpose "batch" and creates a batch for it.
func (p *Provider) Create(ctx context.Context, shard *batch.Shard) (*batch.Metadata, error) {
	file, err := p.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(shard.Data), shard.Name, "application/jsonl"),
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", shard.Name, err)
	}

	b, err := p.client.Batches.New(ctx, openai.BatchNewParams{
		CompletionWindow: openai.BatchNewParamsCompletionWindow24h,
		Endpoint:         openai.BatchNewParamsEndpoint(shard.Endpoint),
		InputFileID:      file.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating batch for file %s: %w", file.ID, err)
	}

	return &batch.Metadata{
		BatchID:     b.ID,
		InputFileID: file.ID,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
	}, nil
}

// Retrieve returns the batch's state. OpenAI statuses are already the
// normalized vocabulary.
func (p *Provider) Retrieve(ctx context.Context, batchID string) (*batch.Job, error) {
	b, err := p.client.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &batch.Job{
		ID:           b.ID,
		Status:       string(b.Status),
		OutputFileID: b.OutputFileID,
		ErrorFileID:  b.ErrorFileID,
		Counts: batch.RequestCounts{
			Total:     b.RequestCounts.Total,
			Completed: b.RequestCounts.Completed,
			Failed:    b.RequestCounts.Failed,
		},
	}, nil
}

// Results streams the batch output file.
func (p *Provider) Results(ctx context.Context, job *batch.Job) (io.ReadCloser, error) {
	if job.OutputFileID == "" {
		return nil, fmt.Errorf("batch %s has no output file", job.ID)
	}
	return p.content(ctx, job.OutputFileID)
}

// Errors streams the batch error file, if it has one.
func (p *Provider) Errors(ctx context.Context, job *batch.Job) (io.ReadCloser, error) {
	if job.ErrorFileID == "" {
		return nil, nil
	}
	return p.content(ctx, job.ErrorFileID)
}

func (p *Provider) content(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := p.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetching file %s: %w", fileID, err)
	}
	return resp.Body, nil
}

// IsRetryable retries transient API statuses and transport errors.
func (p *Provider) IsRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.StatusCode(apiErr.StatusCode)
	}
	return retry.Always(err)
}
