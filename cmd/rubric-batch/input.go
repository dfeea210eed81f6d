/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/transcript"
	"github.com/chainguard-dev/clog"
)

// inputLine is one line of the input NDJSON. A line carries either a
// transcript (messages and tools), an issue text, or a trace segment as
// exported by the conversation sharding job.
type inputLine struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	transcript.Payload

	ConversationID string   `json:"conversation_id"`
	SegmentID      any      `json:"segment_id"`
	TraceSegment   *segment `json:"trace_segment"`
}

type segment struct {
	Trace    []transcript.Message `json:"trace"`
	FollowUp *transcript.Message  `json:"follow_up_user_message"`
	Tools    []json.RawMessage    `json:"tools"`
}

func (l *inputLine) customID() string {
	if l.ID != "" {
		return l.ID
	}
	if l.ConversationID != "" {
		return fmt.Sprintf("req__conv_%s__seg_%v", l.ConversationID, l.SegmentID)
	}
	return ""
}

func (l *inputLine) payload() transcript.Payload {
	if l.TraceSegment == nil {
		return l.Payload
	}
	p := transcript.Payload{Messages: l.TraceSegment.Trace, Tools: l.TraceSegment.Tools}
	if l.TraceSegment.FollowUp != nil {
		p.Messages = append(p.Messages, *l.TraceSegment.FollowUp)
	}
	return p
}

func readItems(ctx context.Context, path string, rs *rubrics) ([]batch.Item, error) {
	if path == "" {
		return nil, errors.New("RUBRIC_INPUT is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer gz.Close()
		rd = gz
	}
	return parseItems(ctx, rd, rs)
}

// parseItems builds one request per input line. Lines that cannot produce a
// request are logged and skipped.
func parseItems(ctx context.Context, rd io.Reader, rs *rubrics) ([]batch.Item, error) {
	log := clog.FromContext(ctx)

	var items []batch.Item
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 1024*1024), 256*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		var line inputLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			log.With("line", n).Warnf("Skipping malformed input line: %v", err)
			continue
		}

		req, err := rs.request(ctx, &line)
		if err != nil {
			log.With("line", n).With("custom_id", line.customID()).Warnf("Skipping line: %v", err)
			continue
		}
		items = append(items, batch.Item{CustomID: line.customID(), Request: req})
	}
	return items, sc.Err()
}
