/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeannotator

import (
	"context"

	"chainguard.dev/rubrics/agents/rubric"
	"chainguard.dev/rubrics/agents/transcript"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// DefaultMaxTokens is used when a request does not set max_tokens, which the
// Messages API requires.
const DefaultMaxTokens = 8192

// MessageParams converts req into Messages API parameters for model.
// Consecutive turns with the same role are merged, and non-text content
// blocks are dropped.
func MessageParams(ctx context.Context, req *rubric.Request, model string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: DefaultMaxTokens,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	for _, m := range req.Messages {
		blocks := textBlocks(ctx, m.Content)
		if m.Role == transcript.RoleSystem {
			for _, b := range blocks {
				params.System = append(params.System, anthropic.TextBlockParam{Text: b})
			}
			continue
		}

		role := anthropic.MessageParamRoleUser
		if m.Role == transcript.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		content := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
		for _, b := range blocks {
			content = append(content, anthropic.NewTextBlock(b))
		}
		if len(content) == 0 {
			continue
		}
		if n := len(params.Messages); n > 0 && params.Messages[n-1].Role == role {
			params.Messages[n-1].Content = append(params.Messages[n-1].Content, content...)
			continue
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{Role: role, Content: content})
	}

	for _, t := range req.Tools {
		schema := t.Function.Parameters
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Function.Name,
				Description: anthropic.String(t.Function.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema.Properties,
					Required:   schema.Required,
				},
			},
		})
	}
	if req.ToolChoice != nil {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.ToolChoice.Function.Name},
		}
	}
	return params
}

func textBlocks(ctx context.Context, content transcript.Content) []string {
	out := make([]string, 0, len(content))
	for _, b := range content {
		if b.Type != "text" {
			clog.FromContext(ctx).With("type", b.Type).Debug("Dropping non-text content block")
			continue
		}
		if b.Text == "" {
			continue
		}
		out = append(out, b.Text)
	}
	return out
}

// ToolCall extracts the first tool_use block of a response.
func ToolCall(msg *anthropic.Message) (*rubric.ToolCall, error) {
	for _, c := range msg.Content {
		if c.Type == "tool_use" {
			return &rubric.ToolCall{Name: c.Name, Arguments: string(c.Input)}, nil
		}
	}
	return nil, rubric.ErrNoToolCalls
}
