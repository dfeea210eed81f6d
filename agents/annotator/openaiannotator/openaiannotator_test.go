/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaiannotator_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/rubrics/agents/annotator/openaiannotator"
	"chainguard.dev/rubrics/agents/retry"
	"chainguard.dev/rubrics/agents/rubric"
	"chainguard.dev/rubrics/agents/rubric/prediction"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "o3-2025-04-16",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"content": null,
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "annotate_issue", "arguments": "{\"has_reproduction_steps_detected\": true, \"has_reproduction_steps_rationale\": \"Steps 1-3.\"}"}
			}]
		}
	}],
	"usage": {"prompt_tokens": 321, "completion_tokens": 17, "total_tokens": 338}
}`

func testRubric(t *testing.T) *rubric.Rubric {
	t.Helper()
	r, err := rubric.New(rubric.Config{
		ToolName:      "annotate_issue",
		SystemMessage: "You analyze issues.",
		Features:      []rubric.Feature{{Name: "has_reproduction_steps", Description: "Steps are given.", Type: prediction.Binary{}}},
	})
	require.NoError(t, err)
	return r
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func newAnnotator(t *testing.T, srv *httptest.Server, opts ...openaiannotator.Option) *openaiannotator.Annotator {
	t.Helper()
	client := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	a, err := openaiannotator.New(client, append([]openaiannotator.Option{openaiannotator.WithRetryConfig(fastRetry())}, opts...)...)
	require.NoError(t, err)
	return a
}

func TestAnnotate(t *testing.T) {
	r := testRubric(t)

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer test", req.Header.Get("Authorization"))
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion)
	}))
	defer srv.Close()

	a := newAnnotator(t, srv, openaiannotator.WithModel("gpt-4.1"))
	req := r.TextRequest("Crash on start. Steps 1-3.", rubric.WithTimeout(time.Minute))

	call, err := a.Annotate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "annotate_issue", call.Name)

	assert.Equal(t, "gpt-4.1", body["model"])
	assert.NotContains(t, body, "timeout")
	assert.Contains(t, body, "tool_choice")
	assert.Len(t, body["tools"], 1)

	features, err := r.DecodeToolCall(context.Background(), call)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.True(t, features[0].Prediction.(*prediction.BinaryPrediction).Detected)
}

func TestAnnotateRetries(t *testing.T) {
	r := testRubric(t)

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error": {"message": "slow down", "type": "rate_limit"}}`)
			return
		}
		_, _ = io.WriteString(w, completion)
	}))
	defer srv.Close()

	call, err := newAnnotator(t, srv).Annotate(context.Background(), r.TextRequest("issue"))
	require.NoError(t, err)
	assert.Equal(t, "annotate_issue", call.Name)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestAnnotateErrors(t *testing.T) {
	r := testRubric(t)

	tests := []struct {
		name     string
		status   int
		body     string
		attempts int32
		wantErr  error
	}{{
		name:     "bad request is not retried",
		status:   http.StatusBadRequest,
		body:     `{"error": {"message": "bad", "type": "invalid_request_error"}}`,
		attempts: 1,
	}, {
		name:     "server errors exhaust retries",
		status:   http.StatusServiceUnavailable,
		body:     `{"error": {"message": "down", "type": "server_error"}}`,
		attempts: 3,
	}, {
		name:     "no tool call",
		status:   http.StatusOK,
		body:     `{"choices": [{"message": {"role": "assistant", "content": "Yes."}}]}`,
		attempts: 1,
		wantErr:  rubric.ErrNoToolCalls,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				attempts.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newAnnotator(t, srv).Annotate(context.Background(), r.TextRequest("issue"))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.attempts, attempts.Load())
		})
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := openaiannotator.New(openai.NewClient(), openaiannotator.WithModel(""))
	assert.Error(t, err)
	_, err = openaiannotator.New(openai.NewClient(), openaiannotator.WithRetryConfig(retry.Config{MaxRetries: -1}))
	assert.Error(t, err)
}
