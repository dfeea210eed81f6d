/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiannotator annotates through an OpenAI-compatible chat
// completions endpoint.
//
// Usage:
//
//	client := openai.NewClient(option.WithAPIKey(key), option.WithMaxRetries(0))
//	a, err := openaiannotator.New(client)
//	call, err := a.Annotate(ctx, req)
package openaiannotator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/rubrics/agents/annotator"
	"chainguard.dev/rubrics/agents/retry"
	"chainguard.dev/rubrics/agents/rubric"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
)

const provider = "openai"

// Annotator implements annotator.Interface with the OpenAI SDK.
type Annotator struct {
	client      openai.Client
	model       string
	retryConfig retry.Config
}

var _ annotator.Interface = (*Annotator)(nil)

// Option configures an Annotator.
type Option func(*Annotator) error

// WithModel overrides the model named in each request.
func WithModel(model string) Option {
	return func(a *Annotator) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		a.model = model
		return nil
	}
}

// WithRetryConfig sets the retry configuration for transient API errors.
// Disable the SDK's own retries (option.WithMaxRetries(0)) when using it.
func WithRetryConfig(cfg retry.Config) Option {
	return func(a *Annotator) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		a.retryConfig = cfg
		return nil
	}
}

// New creates an Annotator over client.
func New(client openai.Client, opts ...Option) (*Annotator, error) {
	a := &Annotator{
		client:      client,
		retryConfig: retry.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return a, nil
}

// Annotate sends req to chat/completions and returns the first tool call.
func (a *Annotator) Annotate(ctx context.Context, req *rubric.Request) (_ *rubric.ToolCall, err error) {
	ctx, cancel := annotator.WithDeadline(ctx, req)
	defer cancel()

	body := req.Body()
	if a.model != "" {
		body.Model = a.model
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, call := annotator.StartCall(ctx, provider, body)
	defer func() { call.End(err) }()

	log := clog.FromContext(ctx).With("model", body.Model)
	log.Debug("Sending annotation request")

	raw, err := retry.Do(ctx, a.retryConfig, "chat_completion", isRetryable, func(ctx context.Context) ([]byte, error) {
		var raw []byte
		err := a.client.Post(ctx, "chat/completions", json.RawMessage(payload), &raw)
		return raw, err
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err == nil {
		call.RecordUsage(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	}

	tc, err := rubric.ParseCompletion(raw)
	if err != nil {
		return nil, err
	}
	call.RecordToolCall(tc.Name)
	return tc, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.StatusCode(apiErr.StatusCode)
	}
	return false
}
