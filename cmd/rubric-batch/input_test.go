/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/metrics"
	"chainguard.dev/rubrics/agents/rubric"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	plainSegment    = `{"conversation_id": "c1", "segment_id": 1, "trace_segment": {"trace": [{"role": "user", "content": "Hi"}, {"role": "assistant", "content": "Hello"}], "tools": []}}`
	followUpSegment = `{"conversation_id": "c1", "segment_id": 3, "trace_segment": {"trace": [{"role": "user", "content": "Hi"}, {"role": "assistant", "content": "Hello"}], "follow_up_user_message": {"role": "user", "content": "Thanks"}, "tools": []}}`
)

func customIDs(items []batch.Item) []string {
	var ids []string
	for _, it := range items {
		ids = append(ids, it.CustomID)
	}
	return ids
}

func hasProperty(req *rubric.Request, key string) bool {
	for _, tool := range req.Tools {
		if _, ok := tool.Function.Parameters.Properties.Get(key); ok {
			return true
		}
	}
	return false
}

func TestParseItems(t *testing.T) {
	rs, err := loadRubrics(config{Rubric: "trajectory"})
	if err != nil {
		t.Fatalf("loadRubrics() = %v", err)
	}

	in := strings.Join([]string{
		`{"id": "plain", "messages": [{"role": "user", "content": "Fix it"}, {"role": "assistant", "content": "Done"}]}`,
		``,
		followUpSegment,
		`{"id": "no-user", "messages": [{"role": "assistant", "content": "Hello"}]}`,
		`{"id": "issue", "text": "The app crashes on start."}`,
	}, "\n")

	items, err := parseItems(context.Background(), strings.NewReader(in), rs)
	if err != nil {
		t.Fatalf("parseItems() = %v", err)
	}
	if diff := cmp.Diff([]string{"plain", "req__conv_c1__seg_3", "issue"}, customIDs(items)); diff != "" {
		t.Errorf("custom ids (-want, +got): %s", diff)
	}

	// The follow-up turn is part of the trace segment's transcript.
	if got := items[1].Request.Messages[len(items[1].Request.Messages)-1].Content.String(); !strings.Contains(got, "Thanks") {
		t.Errorf("last message = %q, want it to carry the follow-up", got)
	}
	// A fixed rubric is used for every line.
	for _, it := range items {
		if hasProperty(it.Request, "follow_up_timing") {
			t.Errorf("%s: fixed trajectory rubric asked the follow-up questions", it.CustomID)
		}
	}
}

func TestParseItemsAuto(t *testing.T) {
	rs, err := loadRubrics(config{Rubric: autoRubric})
	if err != nil {
		t.Fatalf("loadRubrics() = %v", err)
	}

	in := strings.Join([]string{plainSegment, followUpSegment, `{"id": "issue", "text": "The app crashes on start."}`}, "\n")
	items, err := parseItems(context.Background(), strings.NewReader(in), rs)
	if err != nil {
		t.Fatalf("parseItems() = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	tests := []struct {
		tool     string
		followUp bool
	}{
		{tool: "annotate_conversation", followUp: false},
		{tool: "annotate_conversation", followUp: true},
		{tool: "annotate_issue", followUp: false},
	}
	for i, tt := range tests {
		req := items[i].Request
		if got := req.Tools[0].Function.Name; got != tt.tool {
			t.Errorf("%s: tool = %q, want %q", items[i].CustomID, got, tt.tool)
		}
		if got := hasProperty(req, "follow_up_timing"); got != tt.followUp {
			t.Errorf("%s: asks follow_up_timing = %t, want %t", items[i].CustomID, got, tt.followUp)
		}
	}
}

func TestParseItemsSkipsMalformedLines(t *testing.T) {
	rs, err := loadRubrics(config{})
	if err != nil {
		t.Fatalf("loadRubrics() = %v", err)
	}

	in := strings.Join([]string{followUpSegment, `{"id": `, `{"id": "issue", "text": "Crash."}`}, "\n")
	items, err := parseItems(context.Background(), strings.NewReader(in), rs)
	if err != nil {
		t.Fatalf("parseItems() = %v", err)
	}
	if diff := cmp.Diff([]string{"req__conv_c1__seg_3", "issue"}, customIDs(items)); diff != "" {
		t.Errorf("custom ids (-want, +got): %s", diff)
	}
}

func TestLoadRubricsUnknown(t *testing.T) {
	if _, err := loadRubrics(config{Rubric: "nope"}); err == nil {
		t.Error("loadRubrics() = nil, want error for an unknown rubric")
	}
}

func TestRecordBatchIDs(t *testing.T) {
	ctx := context.Background()
	store := batch.DirStore(t.TempDir())

	if err := recordBatchIDs(ctx, store, []*batch.Metadata{{BatchID: "batch_a"}, {BatchID: "batch_b"}}); err != nil {
		t.Fatalf("recordBatchIDs() = %v", err)
	}
	// A submit that created nothing keeps the earlier ids.
	if err := recordBatchIDs(ctx, store, nil); err != nil {
		t.Fatalf("recordBatchIDs() = %v", err)
	}

	got, err := store.Read(ctx, "batch_ids.txt")
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	if diff := cmp.Diff("batch_a\nbatch_b", string(got)); diff != "" {
		t.Errorf("batch_ids.txt (-want, +got): %s", diff)
	}
}

func TestRecordBatchIDsNothingWritten(t *testing.T) {
	ctx := context.Background()
	store := batch.DirStore(t.TempDir())
	if err := recordBatchIDs(ctx, store, nil); err != nil {
		t.Fatalf("recordBatchIDs() = %v", err)
	}
	if _, err := store.Read(ctx, "batch_ids.txt"); !errors.Is(err, batch.ErrNotFound) {
		t.Errorf("Read() = %v, want ErrNotFound", err)
	}
}

func TestCommandContext(t *testing.T) {
	ctx := commandContext(context.Background(), "submit", config{Name: "nightly"})
	got := metrics.ContextAttributes(ctx, nil)
	want := []attribute.KeyValue{attribute.String("command", "submit"), attribute.String("run", "nightly")}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b attribute.KeyValue) bool { return a == b })); diff != "" {
		t.Errorf("attributes (-want, +got): %s", diff)
	}
}
