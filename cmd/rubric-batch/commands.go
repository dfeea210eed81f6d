/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"chainguard.dev/rubrics/agents/annotator"
	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/rubric"
	"github.com/chainguard-dev/clog"
)

func driver(ctx context.Context, cfg config) (*batch.Driver, batch.Store, error) {
	store, err := openStore(ctx, cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	provider, err := batchProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []batch.Option{
		batch.WithMaxRequests(cfg.MaxRequests),
		batch.WithMaxBytes(cfg.MaxBytes),
		batch.WithPollInterval(cfg.PollInterval),
	}
	if cfg.Model != "" {
		opts = append(opts, batch.WithModel(cfg.Model))
	}
	d, err := batch.New(provider, store, opts...)
	if err != nil {
		return nil, nil, err
	}
	return d, store, nil
}

func submit(ctx context.Context, cfg config) error {
	rs, err := loadRubrics(cfg)
	if err != nil {
		return err
	}
	items, err := readItems(ctx, cfg.Input, rs)
	if err != nil {
		return err
	}
	d, store, err := driver(ctx, cfg)
	if err != nil {
		return err
	}

	metas, err := d.SubmitItems(ctx, cfg.Name, items)
	// Batches created before a failure are still worth recording.
	if werr := recordBatchIDs(ctx, store, metas); werr != nil {
		err = errors.Join(err, werr)
	}
	if err != nil {
		return err
	}
	return batch.WriteStatusTable(os.Stdout, metas)
}

// recordBatchIDs writes batch_ids.txt. A run that created no batch leaves
// the ids of an earlier run in place.
func recordBatchIDs(ctx context.Context, store batch.Store, metas []*batch.Metadata) error {
	if len(metas) == 0 {
		return nil
	}
	ids := make([]string, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.BatchID)
	}
	return store.Write(ctx, "batch_ids.txt", []byte(strings.Join(ids, "\n")))
}

func status(ctx context.Context, cfg config) error {
	d, store, err := driver(ctx, cfg)
	if err != nil {
		return err
	}
	metas, err := batch.LoadAll(ctx, store)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if batch.Terminal(m.Status) {
			continue
		}
		if _, err := d.Status(ctx, m); err != nil {
			clog.FromContext(ctx).With("batch_id", m.BatchID).Warnf("Failed to retrieve status: %v", err)
		}
	}
	return batch.WriteStatusTable(os.Stdout, metas)
}

func poll(ctx context.Context, cfg config) error {
	d, store, err := driver(ctx, cfg)
	if err != nil {
		return err
	}
	metas, err := batch.LoadAll(ctx, store)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if batch.Terminal(m.Status) {
			continue
		}
		if _, err := d.Poll(ctx, m, cfg.PollTimeout); err != nil {
			return err
		}
	}
	return batch.WriteStatusTable(os.Stdout, metas)
}

// annotationLine is one line of an annotations output file.
type annotationLine struct {
	CustomID string         `json:"custom_id"`
	Features map[string]any `json:"features"`
}

func download(ctx context.Context, cfg config) error {
	rs, err := loadRubrics(cfg)
	if err != nil {
		return err
	}
	d, store, err := driver(ctx, cfg)
	if err != nil {
		return err
	}
	metas, err := batch.LoadAll(ctx, store)
	if err != nil {
		return err
	}

	log := clog.FromContext(ctx)
	for _, m := range metas {
		if m.Status != batch.StatusCompleted {
			if _, err := d.Status(ctx, m); err != nil {
				return err
			}
		}
		if m.Status != batch.StatusCompleted {
			log.With("batch_id", m.BatchID).With("status", m.Status).Info("Skipping unfinished batch")
			continue
		}
		results, err := d.Download(ctx, m, rs.decoder)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, res := range results {
			if err := enc.Encode(annotationLine{CustomID: res.CustomID, Features: rubric.Flatten(res.Features)}); err != nil {
				return err
			}
		}
		if err := store.Write(ctx, fmt.Sprintf("annotations_%06d.jsonl", m.Shard), buf.Bytes()); err != nil {
			return err
		}
	}
	return batch.WriteStatusTable(os.Stdout, metas)
}

func annotate(ctx context.Context, cfg config) error {
	rs, err := loadRubrics(cfg)
	if err != nil {
		return err
	}
	items, err := readItems(ctx, cfg.Input, rs)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg.Output)
	if err != nil {
		return err
	}
	a, err := liveAnnotator(ctx, cfg)
	if err != nil {
		return err
	}
	pool, err := annotator.NewPool(a, rs.decoder,
		annotator.WithMaxWorkers(cfg.Workers),
		annotator.WithRequestsPerMinute(cfg.RequestsPerMinute))
	if err != nil {
		return err
	}

	requests := make([]*rubric.Request, len(items))
	for i, it := range items {
		requests[i] = it.Request
	}
	results := pool.Run(ctx, requests)

	var (
		buf bytes.Buffer
		ok  int
	)
	enc := json.NewEncoder(&buf)
	for i, res := range results {
		if res == nil {
			continue
		}
		ok++
		if err := enc.Encode(annotationLine{CustomID: items[i].CustomID, Features: rubric.Flatten(res)}); err != nil {
			return err
		}
	}
	clog.FromContext(ctx).With("annotated", ok).With("requests", len(items)).Info("Annotation finished")
	return store.Write(ctx, cfg.Name+"_annotations.jsonl", buf.Bytes())
}
