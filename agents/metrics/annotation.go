/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records OpenTelemetry metrics for annotation calls.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultMeterName is shared by every annotator; the provider and model are
// dimensions on the recorded metrics.
const DefaultMeterName = "chainguard.rubrics.annotators"

// Annotation holds the counters recorded around a single annotation call.
type Annotation struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	toolCalls        metric.Int64Counter
	calls            metric.Int64Counter
	latency          metric.Float64Histogram
	enrich           Enricher
}

// Option configures an Annotation.
type Option func(*options)

type options struct {
	provider metric.MeterProvider
	enrich   Enricher
}

// WithMeterProvider records into provider instead of the global one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithEnricher adds attributes to every recording.
func WithEnricher(e Enricher) Option {
	return func(o *options) { o.enrich = e }
}

// NewAnnotation creates the instruments. An instrument that fails to
// initialize is replaced by a no-op and logged.
func NewAnnotation(meterName string, opts ...Option) *Annotation {
	o := options{enrich: ContextAttributes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = otel.GetMeterProvider()
	}
	meter := o.provider.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			slog.Warn("Failed to create counter, metrics will be disabled", "error", err, "meter", meterName, "counter", name)
			return noop.Int64Counter{}
		}
		return c
	}

	latency, err := meter.Float64Histogram("annotation.duration",
		metric.WithDescription("Wall time of an annotation call including retries"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("Failed to create latency histogram, metrics will be disabled", "error", err, "meter", meterName)
		latency = noop.Float64Histogram{}
	}

	return &Annotation{
		promptTokens:     counter("genai.token.prompt", "The number of prompt tokens used", "{tokens}"),
		completionTokens: counter("genai.token.completion", "The number of completion tokens used", "{tokens}"),
		toolCalls:        counter("genai.tool.calls", "The number of tool calls returned by the model", "{calls}"),
		calls:            counter("annotation.calls", "Annotation calls by outcome", "{calls}"),
		latency:          latency,
		enrich:           o.enrich,
	}
}

func (m *Annotation) attributes(ctx context.Context, base ...attribute.KeyValue) metric.MeasurementOption {
	if m.enrich != nil {
		base = m.enrich(ctx, base)
	}
	return metric.WithAttributes(base...)
}

// RecordTokens records prompt and completion token usage.
func (m *Annotation) RecordTokens(ctx context.Context, provider, model string, promptTokens, completionTokens int64) {
	attrs := m.attributes(ctx, attribute.String("provider", provider), attribute.String("model", model))
	m.promptTokens.Add(ctx, promptTokens, attrs)
	m.completionTokens.Add(ctx, completionTokens, attrs)
}

// RecordToolCall records a tool call returned by the model.
func (m *Annotation) RecordToolCall(ctx context.Context, provider, model, tool string) {
	m.toolCalls.Add(ctx, 1, m.attributes(ctx,
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("tool", tool)))
}

// RecordCall records the outcome and duration of one annotation call.
func (m *Annotation) RecordCall(ctx context.Context, provider, model string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := m.attributes(ctx,
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("outcome", outcome))
	m.calls.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}
