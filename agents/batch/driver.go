/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/rubrics/agents/retry"
	"chainguard.dev/rubrics/agents/rubric"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

const (
	// DefaultEndpoint is the URL every line targets.
	DefaultEndpoint = "/v1/chat/completions"
	// DefaultMaxRequests caps the lines in one shard.
	DefaultMaxRequests = 50_000
	// DefaultMaxBytes caps the encoded size of one shard.
	DefaultMaxBytes = 200 * 1024 * 1024
	// DefaultPollInterval is the sleep between Poll retrievals.
	DefaultPollInterval = 30 * time.Second
)

// Line is one request line of a batch input file.
type Line struct {
	CustomID string          `json:"custom_id"`
	Method   string          `json:"method"`
	URL      string          `json:"url"`
	Body     *rubric.Request `json:"body"`
}

// Item is a request with an optional caller-chosen custom_id.
type Item struct {
	CustomID string
	Request  *rubric.Request
}

// Driver submits, tracks and downloads provider batches.
type Driver struct {
	provider     Provider
	store        Store
	endpoint     string
	maxRequests  int
	maxBytes     int
	retryConfig  retry.Config
	pollInterval time.Duration
	model        string
}

// Option configures a Driver.
type Option func(*Driver) error

// WithEndpoint sets the URL recorded on every line.
func WithEndpoint(endpoint string) Option {
	return func(d *Driver) error {
		if !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("endpoint %q must be an absolute path", endpoint)
		}
		d.endpoint = endpoint
		return nil
	}
}

// WithMaxRequests caps the number of lines per shard.
func WithMaxRequests(n int) Option {
	return func(d *Driver) error {
		if n <= 0 {
			return errors.New("max requests must be positive")
		}
		d.maxRequests = n
		return nil
	}
}

// WithMaxBytes caps the encoded size of a shard. A single line larger than
// the cap still forms a shard on its own.
func WithMaxBytes(n int) Option {
	return func(d *Driver) error {
		if n <= 0 {
			return errors.New("max bytes must be positive")
		}
		d.maxBytes = n
		return nil
	}
}

// WithRetryConfig sets the retry policy for batch creation.
func WithRetryConfig(cfg retry.Config) Option {
	return func(d *Driver) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		d.retryConfig = cfg
		return nil
	}
}

// WithPollInterval sets the sleep between Poll retrievals.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) error {
		if interval <= 0 {
			return errors.New("poll interval must be positive")
		}
		d.pollInterval = interval
		return nil
	}
}

// WithModel overrides the model of every submitted line.
func WithModel(model string) Option {
	return func(d *Driver) error {
		d.model = model
		return nil
	}
}

// New creates a Driver that creates batches with provider and records them
// in store.
func New(provider Provider, store Store, opts ...Option) (*Driver, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	d := &Driver{
		provider:     provider,
		store:        store,
		endpoint:     DefaultEndpoint,
		maxRequests:  DefaultMaxRequests,
		maxBytes:     DefaultMaxBytes,
		retryConfig:  retry.Submission(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return d, nil
}

// CustomID is the default custom_id of the i-th request submitted under name.
func CustomID(name string, i int) string {
	return fmt.Sprintf("req_%s_%08d", name, i)
}

// Submit numbers requests with CustomID and submits them. Nil requests are
// skipped but still consume their index.
func (d *Driver) Submit(ctx context.Context, name string, requests []*rubric.Request) ([]*Metadata, error) {
	items := make([]Item, len(requests))
	for i, req := range requests {
		items[i] = Item{Request: req}
	}
	return d.SubmitItems(ctx, name, items)
}

// SubmitItems shards items and creates one provider batch per shard. Items
// without a CustomID get CustomID(name, i). Metadata of every created batch
// is written to the store before the next shard is created, so a failure
// part way leaves the earlier shards tracked.
func (d *Driver) SubmitItems(ctx context.Context, name string, items []Item) ([]*Metadata, error) {
	log := clog.FromContext(ctx).With("name", name)

	shard, err := nextShard(ctx, d.store)
	if err != nil {
		return nil, err
	}

	var (
		metas []*Metadata
		lines []Line
		buf   bytes.Buffer
	)
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		meta, err := d.create(ctx, name, &Shard{
			Index:    shard,
			Name:     fmt.Sprintf("%s_%06d_%s.jsonl", name, shard, uuid.NewString()),
			Endpoint: d.endpoint,
			Lines:    lines,
			Data:     bytes.Clone(buf.Bytes()),
		})
		if err != nil {
			return err
		}
		metas = append(metas, meta)
		shard++
		lines = nil
		buf.Reset()
		return nil
	}

	for i, item := range items {
		if item.Request == nil {
			log.With("index", i).Warn("Skipping nil request")
			continue
		}
		line := d.line(name, i, item)
		data, err := json.Marshal(line)
		if err != nil {
			return metas, fmt.Errorf("encoding %s: %w", line.CustomID, err)
		}

		if len(lines) > 0 && (len(lines) >= d.maxRequests || buf.Len()+len(data)+1 > d.maxBytes) {
			if err := flush(); err != nil {
				return metas, err
			}
		}
		lines = append(lines, line)
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := flush(); err != nil {
		return metas, err
	}

	log.With("batches", len(metas)).Info("Submitted batches")
	return metas, nil
}

func (d *Driver) line(name string, i int, item Item) Line {
	body := item.Request.Body()
	if d.model != "" {
		body.Model = d.model
	}
	if reasoningModel(body.Model) {
		body.Temperature = nil
	}
	id := item.CustomID
	if id == "" {
		id = CustomID(name, i)
	}
	return Line{CustomID: id, Method: "POST", URL: d.endpoint, Body: body}
}

// reasoningModel reports whether model rejects a sampling temperature.
func reasoningModel(model string) bool {
	if _, after, ok := strings.Cut(model, "/"); ok {
		model = after
	}
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (d *Driver) create(ctx context.Context, name string, shard *Shard) (*Metadata, error) {
	log := clog.FromContext(ctx).With("shard", shard.Index).With("requests", len(shard.Lines))

	if err := d.store.Write(ctx, InputName(shard.Index), shard.Data); err != nil {
		return nil, fmt.Errorf("saving shard %d inputs: %w", shard.Index, err)
	}

	isRetryable := retry.Always
	if r, ok := d.provider.(Retryable); ok {
		isRetryable = r.IsRetryable
	}
	meta, err := retry.Do(ctx, d.retryConfig, "create_batch", isRetryable, func(ctx context.Context) (*Metadata, error) {
		return d.provider.Create(ctx, shard)
	})
	if err != nil {
		return nil, fmt.Errorf("creating batch for shard %d of %s: %w", shard.Index, name, err)
	}

	meta.Shard = shard.Index
	meta.Endpoint = shard.Endpoint
	meta.RequestCount = len(shard.Lines)
	meta.Provider = d.provider.Name()
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().Unix()
	}
	if err := saveMetadata(ctx, d.store, meta); err != nil {
		return nil, err
	}

	shardsSubmitted.Inc()
	requestsSubmitted.Add(float64(len(shard.Lines)))
	log.With("batch_id", meta.BatchID).Info("Created batch")
	return meta, nil
}

// Status retrieves the batch once, records the result in meta and rewrites
// its metadata file.
func (d *Driver) Status(ctx context.Context, meta *Metadata) (string, error) {
	job, err := d.provider.Retrieve(ctx, meta.BatchID)
	if err != nil {
		return "", fmt.Errorf("retrieving batch %s: %w", meta.BatchID, err)
	}
	meta.update(job)
	if err := saveMetadata(ctx, d.store, meta); err != nil {
		return "", err
	}
	return meta.Status, nil
}

// Poll calls Status until the batch reaches a terminal status or timeout
// elapses. On timeout the last observed status is returned without error.
func (d *Driver) Poll(ctx context.Context, meta *Metadata, timeout time.Duration) (string, error) {
	log := clog.FromContext(ctx).With("batch_id", meta.BatchID)
	deadline := time.Now().Add(timeout)

	for {
		status, err := d.Status(ctx, meta)
		if err != nil {
			return "", err
		}
		if Terminal(status) {
			log.With("status", status).Info("Batch finished")
			return status, nil
		}

		wait := min(d.pollInterval, time.Until(deadline))
		if wait <= 0 {
			log.With("status", status).Info("Stopped polling at timeout")
			return status, nil
		}
		log.With("status", status).Debugf("Batch pending, checking again in %v", wait)

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(wait):
		}
	}
}
