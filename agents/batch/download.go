/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"chainguard.dev/rubrics/agents/rubric"
	"github.com/chainguard-dev/clog"
)

// ErrNotCompleted is returned by Download for a batch that has not completed.
var ErrNotCompleted = errors.New("batch has not completed")

// maxLineSize bounds a single output line; long transcripts make large lines.
const maxLineSize = 64 * 1024 * 1024

// Result is the decoded annotation of one output line.
type Result struct {
	CustomID string
	Features []rubric.FeatureData
}

// OutputLine is one line of a batch output file.
type OutputLine struct {
	CustomID string          `json:"custom_id"`
	Response *OutputResponse `json:"response"`
	Error    json.RawMessage `json:"error,omitempty"`
}

// OutputResponse is the HTTP response a batch recorded for a line.
type OutputResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

func (l *OutputLine) failed() bool {
	e := bytes.TrimSpace(l.Error)
	return len(e) > 0 && !bytes.Equal(e, []byte("null"))
}

// Download fetches the output of a completed batch, saves it to the store as
// output_{n:06d}.jsonl and decodes every line with r. Lines that cannot be
// parsed, that carry an error or a non-200 status, or whose tool call does
// not decode are logged and skipped.
func (d *Driver) Download(ctx context.Context, meta *Metadata, r rubric.Decoder) ([]Result, error) {
	if meta.Status != StatusCompleted {
		return nil, fmt.Errorf("batch %s is %q: %w", meta.BatchID, meta.Status, ErrNotCompleted)
	}
	log := clog.FromContext(ctx).With("batch_id", meta.BatchID)
	job := meta.Job()

	if er, ok := d.provider.(ErrorReporter); ok && job.ErrorFileID != "" {
		if _, err := d.fetch(ctx, ErrorsName(meta.Shard), func() (io.ReadCloser, error) { return er.Errors(ctx, job) }); err != nil {
			log.Warnf("Failed to save batch errors: %v", err)
		}
	}

	data, err := d.fetch(ctx, OutputName(meta.Shard), func() (io.ReadCloser, error) { return d.provider.Results(ctx, job) })
	if err != nil {
		return nil, fmt.Errorf("downloading results of batch %s: %w", meta.BatchID, err)
	}

	results, err := Decode(ctx, bytes.NewReader(data), r)
	if err != nil {
		return nil, fmt.Errorf("reading results of batch %s: %w", meta.BatchID, err)
	}
	log.With("results", len(results)).With("requests", meta.RequestCount).Info("Downloaded batch")
	return results, nil
}

// Reload decodes a previously downloaded output file from the store with r,
// for example after the rubric changed.
func (d *Driver) Reload(ctx context.Context, meta *Metadata, r rubric.Decoder) ([]Result, error) {
	data, err := d.store.Read(ctx, OutputName(meta.Shard))
	if err != nil {
		return nil, err
	}
	return Decode(ctx, bytes.NewReader(data), r)
}

// fetch reads what open returns and saves it to the store under name.
func (d *Driver) fetch(ctx context.Context, name string, open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if err := d.store.Write(ctx, name, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decode reads output lines from rd and decodes the successful ones with r.
// Only read failures are returned; bad lines are logged and counted.
func Decode(ctx context.Context, rd io.Reader, r rubric.Decoder) ([]Result, error) {
	log := clog.FromContext(ctx)

	var results []Result
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
	for n := 1; sc.Scan(); n++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line OutputLine
		if err := json.Unmarshal(raw, &line); err != nil {
			log.With("line", n).Warnf("Skipping malformed output line: %v", err)
			outputRecords.WithLabelValues("malformed").Inc()
			continue
		}
		llog := log.With("custom_id", line.CustomID)

		switch {
		case line.failed():
			llog.Warnf("Skipping failed request: %s", line.Error)
			outputRecords.WithLabelValues("error").Inc()
			continue
		case line.Response == nil:
			llog.Warn("Skipping output line without a response")
			outputRecords.WithLabelValues("malformed").Inc()
			continue
		case line.Response.StatusCode != http.StatusOK:
			llog.With("status_code", line.Response.StatusCode).Warn("Skipping non-200 response")
			outputRecords.WithLabelValues("status").Inc()
			continue
		}

		tc, err := rubric.ParseCompletion(line.Response.Body)
		if err != nil {
			llog.Warnf("Skipping response without a tool call: %v", err)
			outputRecords.WithLabelValues("no_tool_call").Inc()
			continue
		}
		features, err := r.DecodeToolCall(ctx, tc)
		if err != nil {
			llog.Warnf("Skipping undecodable tool call: %v", err)
			outputRecords.WithLabelValues("decode_failed").Inc()
			continue
		}

		outputRecords.WithLabelValues("ok").Inc()
		results = append(results, Result{CustomID: line.CustomID, Features: features})
	}
	if err := sc.Err(); err != nil {
		return results, err
	}
	return results, nil
}
