/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Roles used in chat transcripts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Payload is a raw transcript as captured from an agent run.
// Tools are kept raw because they arrive in more than one format; see ReformatTools.
type Payload struct {
	Messages []Message        `json:"messages"`
	Tools    []json.RawMessage `json:"tools,omitempty"`
}

// Message is one chat turn.
type Message struct {
	Role       string     `json:"role"`
	Content    Content    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by an assistant turn.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Content is the list of blocks in a turn. It decodes from either a plain
// string or an array of blocks, and always encodes as an array.
type Content []Block

// Text returns a single-block content holding s.
func Text(s string) Content {
	return Content{{Type: "text", Text: s}}
}

// String joins the text blocks with newlines.
func (c Content) String() string {
	parts := make([]string, 0, len(c))
	for _, b := range c {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Block(c))
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content must be a string or a list of blocks: %w", err)
	}
	*c = blocks
	return nil
}

// Block is one content block. Text blocks carry Text; every other key of a
// block (image_url, file, ...) is preserved in Extra. Provider cache hints
// (cache_control) are dropped on decode.
type Block struct {
	Type  string
	Text  string
	Extra map[string]json.RawMessage
}

func (b Block) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Extra)+2)
	for k, v := range b.Extra {
		out[k] = v
	}
	out["type"] = b.Type
	if b.Type == "text" || b.Text != "" {
		out["text"] = b.Text
	}
	return json.Marshal(out)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var blk Block
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &blk.Type); err != nil {
			return fmt.Errorf("block type: %w", err)
		}
	}
	if t, ok := raw["text"]; ok {
		if err := json.Unmarshal(t, &blk.Text); err != nil {
			return fmt.Errorf("block text: %w", err)
		}
	}
	delete(raw, "type")
	delete(raw, "text")
	delete(raw, "cache_control")
	if len(raw) > 0 {
		blk.Extra = raw
	}
	*b = blk
	return nil
}
