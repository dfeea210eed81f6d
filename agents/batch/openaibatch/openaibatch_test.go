/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaibatch_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/batch/openaibatch"
	"chainguard.dev/rubrics/agents/retry"
	"chainguard.dev/rubrics/agents/rubric"
	"chainguard.dev/rubrics/agents/rubric/prediction"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `{
	"id": "batch_1",
	"object": "batch",
	"endpoint": "/v1/chat/completions",
	"input_file_id": "file_in",
	"completion_window": "24h",
	"status": %q,
	"output_file_id": %q,
	"created_at": 1700000000,
	"request_counts": {"total": 2, "completed": 2, "failed": 0}
}`

const output = `{"custom_id":"req_run_00000000","response":{"status_code":200,"body":{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"c","type":"function","function":{"name":"annotate_issue","arguments":"{\"clear_steps_detected\":true,\"clear_steps_rationale\":\"listed\"}"}}]}}]}},"error":null}
{"custom_id":"req_run_00000001","response":{"status_code":400,"body":{}},"error":null}
`

type server struct {
	uploads    atomic.Int32
	creates    atomic.Int32
	failCreate atomic.Int32
	uploaded   atomic.Value
	status     atomic.Value
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case req.Method == http.MethodPost && req.URL.Path == "/files":
		s.uploads.Add(1)
		f, _, err := req.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		s.uploaded.Store(string(data))
		if req.FormValue("purpose") != "batch" {
			http.Error(w, "bad purpose", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id": "file_in", "object": "file", "bytes": 10, "created_at": 1700000000, "filename": "x.jsonl", "purpose": "batch", "status": "processed"}`))
	case req.Method == http.MethodPost && req.URL.Path == "/batches":
		s.creates.Add(1)
		if s.failCreate.Add(-1) >= 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
			return
		}
		fmt.Fprintf(w, batchJSON, "validating", "")
	case req.Method == http.MethodGet && req.URL.Path == "/batches/batch_1":
		fmt.Fprintf(w, batchJSON, s.status.Load(), "file_out")
	case req.Method == http.MethodGet && req.URL.Path == "/files/file_out/content":
		w.Header().Set("Content-Type", "application/jsonl")
		_, _ = w.Write([]byte(output))
	default:
		http.NotFound(w, req)
	}
}

func newClient(srv *httptest.Server) openai.Client {
	return openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := &server{}
	s.failCreate.Store(1)
	s.status.Store("in_progress")
	srv := httptest.NewServer(s)
	defer srv.Close()

	r, err := rubric.New(rubric.Config{
		ToolName:      "annotate_issue",
		RequiredAll:   true,
		SystemMessage: "Assess the issue.",
		Features:      []rubric.Feature{{Name: "clear_steps", Description: "steps to reproduce", Type: prediction.Binary{}}},
	})
	require.NoError(t, err)

	d, err := batch.New(openaibatch.New(newClient(srv)), batch.DirStore(t.TempDir()),
		batch.WithRetryConfig(retry.Config{MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
		batch.WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	metas, err := d.Submit(ctx, "run", []*rubric.Request{
		r.TextRequest("Crash on start"),
		r.TextRequest("It is slow"),
	})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "batch_1", metas[0].BatchID)
	assert.Equal(t, "file_in", metas[0].InputFileID)
	assert.Equal(t, batch.StatusValidating, metas[0].Status)
	assert.Equal(t, "openai", metas[0].Provider)
	// The upload is repeated with the batch creation on retry.
	assert.EqualValues(t, 2, s.creates.Load())
	assert.Equal(t, 2, strings.Count(s.uploaded.Load().(string), "\n"))

	status, err := d.Status(ctx, metas[0])
	require.NoError(t, err)
	assert.Equal(t, batch.StatusInProgress, status)

	s.status.Store("completed")
	status, err = d.Poll(ctx, metas[0], time.Minute)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, status)
	assert.Equal(t, "file_out", metas[0].OutputFileID)

	results, err := d.Download(ctx, metas[0], r)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "req_run_00000000", results[0].CustomID)
}

func TestIsRetryable(t *testing.T) {
	p := openaibatch.New(openai.NewClient())
	assert.True(t, p.IsRetryable(fmt.Errorf("wrapped: %w", &openai.Error{StatusCode: http.StatusTooManyRequests})))
	assert.True(t, p.IsRetryable(fmt.Errorf("wrapped: %w", &openai.Error{StatusCode: http.StatusBadGateway})))
	assert.False(t, p.IsRetryable(&openai.Error{StatusCode: http.StatusBadRequest}))
	assert.False(t, p.IsRetryable(context.Canceled))
	assert.True(t, p.IsRetryable(io.ErrUnexpectedEOF))
}
