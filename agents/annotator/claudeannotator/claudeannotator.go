/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeannotator

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/rubrics/agents/annotator"
	"chainguard.dev/rubrics/agents/retry"
	"chainguard.dev/rubrics/agents/rubric"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

const provider = "anthropic"

// DefaultModel is used unless WithModel is given or the request already
// names a Claude model.
const DefaultModel = "claude-sonnet-4@20250514"

// Annotator implements annotator.Interface with the Anthropic SDK.
type Annotator struct {
	client      anthropic.Client
	model       string
	override    bool
	retryConfig retry.Config
}

var _ annotator.Interface = (*Annotator)(nil)

// Option configures an Annotator.
type Option func(*Annotator) error

// WithModel uses model for every request.
func WithModel(model string) Option {
	return func(a *Annotator) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
		}
		a.model = model
		a.override = true
		return nil
	}
}

// WithRetryConfig sets the retry configuration for 429 and 529 responses.
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
func New(client anthropic.Client, opts ...Option) (*Annotator, error) {
	a := &Annotator{
		client:      client,
		model:       DefaultModel,
		retryConfig: retry.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return a, nil
}

// Model returns the model req is sent to.
func (a *Annotator) Model(req *rubric.Request) string {
	if !a.override && strings.HasPrefix(req.Model, "claude-") {
		return req.Model
	}
	return a.model
}

// Annotate sends req to the Messages API and returns the tool_use block.
func (a *Annotator) Annotate(ctx context.Context, req *rubric.Request) (_ *rubric.ToolCall, err error) {
	ctx, cancel := annotator.WithDeadline(ctx, req)
	defer cancel()

	body := req.Body()
	body.Model = a.Model(req)
	params := MessageParams(ctx, body, body.Model)

	ctx, call := annotator.StartCall(ctx, provider, body)
	defer func() { call.End(err) }()

	clog.FromContext(ctx).With("model", body.Model).
		With("messages", len(params.Messages)).
		Debug("Sending annotation request")

	msg, err := retry.Do(ctx, a.retryConfig, "create_message", IsRetryable, func(ctx context.Context) (*anthropic.Message, error) {
		return a.client.Messages.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		call.RecordUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens)
	}
	tc, err := ToolCall(msg)
	if err != nil {
		return nil, err
	}
	call.RecordToolCall(tc.Name)
	return tc, nil
}
