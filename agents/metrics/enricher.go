/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"
)

// Enricher adds contextual attributes (a dataset name, a batch id) to the
// base attributes of a recording.
type Enricher func(ctx context.Context, base []attribute.KeyValue) []attribute.KeyValue

type attrsKey struct{}

// WithAttributes returns a context whose recordings carry attrs in addition
// to any attributes already attached.
func WithAttributes(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	prev, _ := ctx.Value(attrsKey{}).([]attribute.KeyValue)
	return context.WithValue(ctx, attrsKey{}, slices.Concat(prev, attrs))
}

// ContextAttributes is the default Enricher: it appends the attributes
// attached with WithAttributes.
func ContextAttributes(ctx context.Context, base []attribute.KeyValue) []attribute.KeyValue {
	attrs, _ := ctx.Value(attrsKey{}).([]attribute.KeyValue)
	return slices.Concat(base, attrs)
}
