/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package annotator

import (
	"context"
	"sync"
	"time"

	"chainguard.dev/rubrics/agents/metrics"
	"chainguard.dev/rubrics/agents/rubric"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var defaultMetrics = sync.OnceValue(func() *metrics.Annotation {
	return metrics.NewAnnotation(metrics.DefaultMeterName)
})

// Call observes one provider call: a span named "annotate <provider>" plus
// the token, tool-call and outcome metrics.
type Call struct {
	provider string
	model    string
	start    time.Time
	ctx      context.Context
	span     oteltrace.Span
	metrics  *metrics.Annotation
}

// StartCall opens the span for a call. The returned context carries it.
func StartCall(ctx context.Context, provider string, req *rubric.Request) (context.Context, *Call) {
	tr := otel.Tracer("chainguard.rubrics.annotator",
		oteltrace.WithInstrumentationVersion("1.0.0"))

	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("model", req.Model),
	}
	if len(req.Tools) > 0 {
		attrs = append(attrs, attribute.String("tool.name", req.Tools[0].Function.Name))
	}
	ctx, span := tr.Start(ctx, "annotate "+provider, oteltrace.WithAttributes(attrs...))

	return ctx, &Call{
		provider: provider,
		model:    req.Model,
		start:    time.Now(),
		ctx:      ctx,
		span:     span,
		metrics:  defaultMetrics(),
	}
}

// RecordUsage records token usage on the span and in metrics.
func (c *Call) RecordUsage(promptTokens, completionTokens int64) {
	c.span.SetAttributes(
		attribute.Int64("tokens.input", promptTokens),
		attribute.Int64("tokens.output", completionTokens),
		attribute.Int64("tokens.total", promptTokens+completionTokens),
	)
	c.metrics.RecordTokens(c.ctx, c.provider, c.model, promptTokens, completionTokens)
}

// RecordToolCall records the tool the model called.
func (c *Call) RecordToolCall(name string) {
	c.span.AddEvent("tool_call", oteltrace.WithAttributes(attribute.String("tool.name", name)))
	c.metrics.RecordToolCall(c.ctx, c.provider, c.model, name)
}

// End closes the span and records the outcome.
func (c *Call) End(err error) {
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	} else {
		c.span.SetStatus(codes.Ok, "")
	}
	c.metrics.RecordCall(c.ctx, c.provider, c.model, err, time.Since(c.start))
	c.span.End()
}
