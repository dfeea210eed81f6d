/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package annotator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/rubrics/agents/rubric"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxWorkers bounds the number of calls in flight.
	DefaultMaxWorkers = 4
	// DefaultRequestsPerMinute paces outbound calls across all workers.
	DefaultRequestsPerMinute = 60
)

// Pool annotates many requests and decodes every answer with one decoder,
// a single rubric or a rubric.Set.
type Pool struct {
	annotator  Interface
	decoder    rubric.Decoder
	maxWorkers int
	limiter    *rate.Limiter
}

// Option configures a Pool.
type Option func(*Pool) error

// WithMaxWorkers sets the number of concurrent calls.
func WithMaxWorkers(n int) Option {
	return func(p *Pool) error {
		if n < 1 {
			return fmt.Errorf("max workers must be positive, got %d", n)
		}
		p.maxWorkers = n
		return nil
	}
}

// WithRequestsPerMinute sets the shared call budget. Zero disables pacing.
func WithRequestsPerMinute(rpm int) Option {
	return func(p *Pool) error {
		switch {
		case rpm < 0:
			return fmt.Errorf("requests per minute cannot be negative, got %d", rpm)
		case rpm == 0:
			p.limiter = rate.NewLimiter(rate.Inf, 1)
		default:
			p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
		return nil
	}
}

// NewPool creates a Pool that decodes every answer with d.
func NewPool(a Interface, d rubric.Decoder, opts ...Option) (*Pool, error) {
	if a == nil {
		return nil, errors.New("annotator is required")
	}
	if d == nil {
		return nil, errors.New("rubric is required")
	}
	p := &Pool{
		annotator:  a,
		decoder:    d,
		maxWorkers: DefaultMaxWorkers,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/DefaultRequestsPerMinute), 1),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Annotate performs one call and decodes it.
func (p *Pool) Annotate(ctx context.Context, req *rubric.Request) ([]rubric.FeatureData, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	call, err := p.annotator.Annotate(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.decoder.DecodeToolCall(ctx, call)
}

// Run annotates every request. The result has the same length and order as
// requests; an item whose call or decode failed, or whose request is nil,
// is nil. A failed item never cancels its siblings.
func (p *Pool) Run(ctx context.Context, requests []*rubric.Request) [][]rubric.FeatureData {
	log := clog.FromContext(ctx)
	results := make([][]rubric.FeatureData, len(requests))

	var g errgroup.Group
	g.SetLimit(p.maxWorkers)
	for i, req := range requests {
		if req == nil {
			continue
		}
		g.Go(func() error {
			features, err := p.Annotate(ctx, req)
			if err != nil {
				log.With("index", i).With("error", err.Error()).Warn("Annotation failed")
				return nil
			}
			results[i] = features
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()
	return results
}
