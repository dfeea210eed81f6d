/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/rubrics/agents/transcript"
	"github.com/google/go-cmp/cmp"
)

const (
	sysMsg      = "You are an annotator."
	instruction = "  Fill the annotate_conversation function.\n"
)

func mustPayload(t *testing.T, raw string) transcript.Payload {
	t.Helper()
	var p transcript.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return p
}

func texts(ss ...string) transcript.Content {
	c := make(transcript.Content, 0, len(ss))
	for _, s := range ss {
		c = append(c, transcript.Block{Type: "text", Text: s})
	}
	return c
}

func TestTransform(t *testing.T) {
	p := mustPayload(t, `{
		"messages": [
			{"role": "system", "content": "You are helpful."},
			{"role": "user", "content": [{"type": "text", "text": "Fix the bug", "cache_control": {"type": "ephemeral"}}]},
			{"role": "assistant", "content": "Looking.", "tool_calls": [
				{"id": "c1", "type": "function", "function": {"name": "run", "arguments": "{\"cmd\": \"go test\", \"args\": [\"-v\"]}"}}
			]},
			{"role": "tool", "name": "run", "tool_call_id": "c1", "content": "ok"},
			{"role": "assistant", "content": "Done."}
		],
		"tools": [
			{"name": "run", "description": "Run a command.", "input_schema": {
				"type": "object",
				"properties": {"cmd": {"type": "string", "description": "Command."}, "args": {"type": "array"}},
				"required": ["cmd"]
			}}
		]
	}`)

	got, err := transcript.Transform(context.Background(), p, sysMsg, instruction)
	if err != nil {
		t.Fatalf("Transform() = %v", err)
	}

	toolsDesc := "---- BEGIN FUNCTION #1: run ----\n" +
		"Description: Run a command.\n" +
		"Parameters:\n" +
		"  (1) cmd (string, required): Command.\n" +
		"  (2) args (array, optional): No description provided\n" +
		"---- END FUNCTION #1 ----\n"
	header := "<< BEGIN ORIGINAL SYSTEM MESSAGE>>\nYou are helpful.\n<< END ORIGINAL SYSTEM MESSAGE >>\n\n" +
		"<< BEGIN TOOLS DESCRIPTION >>\n" + toolsDesc + "\n<< END TOOLS DESCRIPTION >>\n\n"

	want := []transcript.Message{{
		Role:    "system",
		Content: texts(sysMsg),
	}, {
		Role:    "user",
		Content: texts(header, "<< BEGIN FIRST USER MESSAGE >>\n", "Fix the bug", "\n<< END FIRST USER MESSAGE >>"),
	}, {
		Role: "assistant",
		Content: texts("Looking.\n\n<function=run>\n" +
			"<parameter=cmd>go test</parameter>\n" +
			"<parameter=args>[\"-v\"]</parameter>\n" +
			"</function>"),
	}, {
		Role:    "user",
		Content: texts("EXECUTION RESULT of [run]:\n", "ok"),
	}, {
		Role:    "assistant",
		Content: texts("<< BEGIN LAST AGENT MESSAGE >>\n", "Done.", "\n<< END LAST AGENT MESSAGE >>"),
	}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformUserFollowUp(t *testing.T) {
	p := mustPayload(t, `{"messages": [
		{"role": "system", "content": "sys"},
		{"role": "user", "content": "Fix the bug"},
		{"role": "assistant", "content": "Done."},
		{"role": "user", "content": "That's not what I meant."}
	]}`)

	got, err := transcript.Transform(context.Background(), p, sysMsg, instruction)
	if err != nil {
		t.Fatalf("Transform() = %v", err)
	}
	if !transcript.HasUserFollowUp(p) {
		t.Error("HasUserFollowUp() = false, want true")
	}

	last := got[len(got)-1]
	want := texts(
		"<< BEGIN LAST USER MESSAGE >>\n",
		"That's not what I meant.",
		"<< END LAST USER MESSAGE >>\n",
		"Fill the annotate_conversation function.",
	)
	if diff := cmp.Diff(want, last.Content); diff != "" {
		t.Errorf("last user turn mismatch (-want +got):\n%s", diff)
	}

	agent := got[len(got)-2]
	if agent.Content[0].Text != "<< BEGIN LAST AGENT MESSAGE >>\n" {
		t.Errorf("last agent turn not marked: %q", agent.Content[0].Text)
	}
}

func TestTransformTrailingAssistant(t *testing.T) {
	p := mustPayload(t, `{"messages": [
		{"role": "user", "content": "Fix the bug"},
		{"role": "assistant", "content": "Done.", "tool_calls": [{"function": {"name": "run_tests", "arguments": "{}"}}]}
	]}`)

	got, err := transcript.Transform(context.Background(), p, sysMsg, instruction)
	if err != nil {
		t.Fatalf("Transform() = %v", err)
	}
	if transcript.HasUserFollowUp(p) {
		t.Error("HasUserFollowUp() = true, want false")
	}

	var all strings.Builder
	for _, m := range got {
		all.WriteString(m.Content.String())
	}
	s := all.String()
	for _, want := range []string{"<< BEGIN LAST AGENT MESSAGE >>", "<< END LAST AGENT MESSAGE >>", "<function=run_tests>\n</function>"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
	for _, unwanted := range []string{"LAST USER MESSAGE", "Fill the annotate_conversation function.", "ORIGINAL SYSTEM MESSAGE"} {
		if strings.Contains(s, unwanted) {
			t.Errorf("output unexpectedly contains %q", unwanted)
		}
	}
}

func TestTransformNothingToAnnotate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{{
		name: "no user turns",
		raw:  `{"messages": [{"role": "system", "content": "s"}, {"role": "assistant", "content": "hi"}]}`,
	}, {
		name: "no assistant turns",
		raw:  `{"messages": [{"role": "system", "content": "s"}, {"role": "user", "content": "hi"}]}`,
	}, {
		name: "only an empty assistant turn",
		raw:  `{"messages": [{"role": "assistant", "content": [{"type": "text", "text": ""}]}, {"role": "user", "content": "hi"}]}`,
	}, {
		name: "empty transcript",
		raw:  `{"messages": []}`,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transcript.Transform(context.Background(), mustPayload(t, tt.raw), sysMsg, instruction)
			if !errors.Is(err, transcript.ErrNothingToAnnotate) {
				t.Errorf("Transform() = %v, want ErrNothingToAnnotate", err)
			}
		})
	}
}

func TestTransformDropsLeadingEmptyAssistant(t *testing.T) {
	p := mustPayload(t, `{"messages": [
		{"role": "system", "content": "sys"},
		{"role": "assistant", "content": [{"type": "text", "text": ""}]},
		{"role": "user", "content": "hello"},
		{"role": "assistant", "content": "hi"}
	]}`)
	got, err := transcript.Transform(context.Background(), p, sysMsg, instruction)
	if err != nil {
		t.Fatalf("Transform() = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	if got[1].Role != "user" || !strings.Contains(got[1].Content.String(), "<< BEGIN FIRST USER MESSAGE >>") {
		t.Errorf("first turn after system is %q: %q", got[1].Role, got[1].Content.String())
	}
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	p := mustPayload(t, `{"messages": [
		{"role": "user", "content": "hello"},
		{"role": "assistant", "content": "hi", "tool_calls": [{"function": {"name": "f", "arguments": "{\"a\": 1}"}}]}
	]}`)
	before, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := transcript.Transform(context.Background(), p, sysMsg, instruction); err != nil {
		t.Fatal(err)
	}
	after, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(before), string(after)); diff != "" {
		t.Errorf("payload mutated (-before +after):\n%s", diff)
	}
}

func TestTransformBadToolCall(t *testing.T) {
	p := mustPayload(t, `{"messages": [
		{"role": "user", "content": "hello"},
		{"role": "assistant", "content": "hi", "tool_calls": [{"type": "function", "function": {"name": "f", "arguments": "not json"}}]}
	]}`)
	_, err := transcript.Transform(context.Background(), p, sysMsg, instruction)
	var tce *transcript.ToolCallConversionError
	if !errors.As(err, &tce) {
		t.Fatalf("Transform() = %v, want *ToolCallConversionError", err)
	}
	if tce.Name != "f" {
		t.Errorf("got name %q, want %q", tce.Name, "f")
	}
}

func TestRenderToolCall(t *testing.T) {
	tests := []struct {
		name string
		call transcript.ToolCall
		want string
	}{{
		name: "no arguments",
		call: transcript.ToolCall{Function: transcript.FunctionCall{Name: "finish", Arguments: "{}"}},
		want: "<function=finish>\n</function>",
	}, {
		name: "multiline string",
		call: transcript.ToolCall{Type: "function", Function: transcript.FunctionCall{
			Name:      "str_replace_editor",
			Arguments: `{"command": "create", "file_text": "a\nb", "path": "/x.go"}`,
		}},
		want: "<function=str_replace_editor>\n" +
			"<parameter=command>create</parameter>\n" +
			"<parameter=file_text>\na\nb\n</parameter>\n" +
			"<parameter=path>/x.go</parameter>\n" +
			"</function>",
	}, {
		name: "objects and scalars keep order",
		call: transcript.ToolCall{Function: transcript.FunctionCall{
			Name:      "f",
			Arguments: `{"z": {"b": 1, "a": 2}, "n": 3, "ok": true}`,
		}},
		want: "<function=f>\n" +
			"<parameter=z>{\"b\": 1, \"a\": 2}</parameter>\n" +
			"<parameter=n>3</parameter>\n" +
			"<parameter=ok>True</parameter>\n" +
			"</function>",
	}, {
		name: "json spacing and escapes",
		call: transcript.ToolCall{Function: transcript.FunctionCall{
			Name:      "run",
			Arguments: `{"args":["-v","-race"],"env":{"A":"x, y: z","B":"caf\u00e9 ☕"},"dry":false,"limit":null}`,
		}},
		want: "<function=run>\n" +
			"<parameter=args>[\"-v\", \"-race\"]</parameter>\n" +
			"<parameter=env>{\"A\": \"x, y: z\", \"B\": \"caf\\u00e9 \\u2615\"}</parameter>\n" +
			"<parameter=dry>False</parameter>\n" +
			"<parameter=limit>None</parameter>\n" +
			"</function>",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transcript.RenderToolCall(tt.call)
			if err != nil {
				t.Fatalf("RenderToolCall() = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("RenderToolCall() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("wrong type", func(t *testing.T) {
		_, err := transcript.RenderToolCall(transcript.ToolCall{Type: "retrieval", Function: transcript.FunctionCall{Name: "f"}})
		if err == nil {
			t.Error("expected error for non-function tool call")
		}
	})
}

func TestDescribeTools(t *testing.T) {
	tools, err := transcript.ReformatTools([]json.RawMessage{
		json.RawMessage(`{"type": "function", "function": {"name": "a", "description": "First.", "parameters": {
			"type": "object",
			"properties": {"mode": {"type": "string", "description": "Mode.", "enum": ["fast", "slow"]}},
			"required": ["mode"]
		}}}`),
		json.RawMessage(`{"type": "function", "function": {"name": "b", "description": "Second.", "parameters": {}}}`),
	})
	if err != nil {
		t.Fatalf("ReformatTools() = %v", err)
	}

	got, err := transcript.DescribeTools(tools)
	if err != nil {
		t.Fatalf("DescribeTools() = %v", err)
	}
	want := "---- BEGIN FUNCTION #1: a ----\n" +
		"Description: First.\n" +
		"Parameters:\n" +
		"  (1) mode (string, required): Mode.\nAllowed values: [`fast`, `slow`]\n" +
		"---- END FUNCTION #1 ----\n" +
		"\n" +
		"---- BEGIN FUNCTION #2: b ----\n" +
		"Description: Second.\n" +
		"Parameters:\n" +
		"---- END FUNCTION #2 ----\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DescribeTools() mismatch (-want +got):\n%s", diff)
	}
}

func TestReformatToolsRejectsIncomplete(t *testing.T) {
	_, err := transcript.ReformatTools([]json.RawMessage{json.RawMessage(`{"description": "no name"}`)})
	if !errors.Is(err, transcript.ErrInvalidTool) {
		t.Errorf("ReformatTools() = %v, want ErrInvalidTool", err)
	}
}

func TestContentDecoding(t *testing.T) {
	var m transcript.Message
	raw := `{"role": "user", "content": [
		{"type": "text", "text": "look", "cache_control": {"type": "ephemeral"}},
		{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAA"}}
	]}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(m.Content)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"text":"look","type":"text"},{"image_url":{"url":"data:image/png;base64,AAA"},"type":"image_url"}]`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}
