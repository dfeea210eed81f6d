/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package annotator sends rubric requests to an LLM and decodes the answers.
//
// Provider implementations live in the subpackages openaiannotator,
// claudeannotator and googleannotator. Pool fans a list of requests out over
// any of them with bounded concurrency and shared pacing.
package annotator

import (
	"context"

	"chainguard.dev/rubrics/agents/rubric"
)

// Interface performs one annotation call and returns the forced tool call.
type Interface interface {
	Annotate(ctx context.Context, req *rubric.Request) (*rubric.ToolCall, error)
}

// Func adapts a function to Interface.
type Func func(ctx context.Context, req *rubric.Request) (*rubric.ToolCall, error)

// Annotate implements Interface.
func (f Func) Annotate(ctx context.Context, req *rubric.Request) (*rubric.ToolCall, error) {
	return f(ctx, req)
}

// WithDeadline bounds ctx by the request's timeout, when it has one.
func WithDeadline(ctx context.Context, req *rubric.Request) (context.Context, context.CancelFunc) {
	if d := req.Deadline(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
