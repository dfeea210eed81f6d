/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/chainguard-dev/clog"
)

// ErrNothingToAnnotate is returned when a transcript lacks a user turn or an
// assistant turn.
var ErrNothingToAnnotate = errors.New("transcript has nothing to annotate")

const (
	beginLastAgent = "<< BEGIN LAST AGENT MESSAGE >>\n"
	endLastAgent   = "\n<< END LAST AGENT MESSAGE >>"
	beginLastUser  = "<< BEGIN LAST USER MESSAGE >>\n"
	endLastUser    = "<< END LAST USER MESSAGE >>\n"
	beginFirstUser = "<< BEGIN FIRST USER MESSAGE >>\n"
	endFirstUser   = "\n<< END FIRST USER MESSAGE >>"
)

// Transform rewrites payload into the messages sent to an annotator model.
// systemMessage becomes the new leading system turn; instruction is appended
// after a trailing user follow-up.
func Transform(ctx context.Context, payload Payload, systemMessage, instruction string) ([]Message, error) {
	log := clog.FromContext(ctx)

	tools, err := ReformatTools(payload.Tools)
	if err != nil {
		return nil, err
	}
	toolsDesc, err := DescribeTools(tools)
	if err != nil {
		return nil, err
	}

	systemText := ""
	messages := make([]Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		if m.Role == RoleSystem {
			if systemText == "" {
				systemText = m.Content.String()
			}
			continue
		}
		messages = append(messages, m)
	}
	if systemText == "" {
		log.Info("Transcript has no original system message")
	}

	if len(messages) > 0 && messages[0].Role == RoleAssistant && len(messages[0].ToolCalls) == 0 && messages[0].Content.String() == "" {
		log.Info("Removing initial empty assistant message")
		messages = messages[1:]
	}

	lastUser, lastAssistant := lastIndexes(messages)
	if lastUser < 0 {
		log.Info("No user messages found in transcript")
		return nil, fmt.Errorf("no user turns: %w", ErrNothingToAnnotate)
	}
	if lastAssistant < 0 {
		log.Info("No assistant messages found in transcript")
		return nil, fmt.Errorf("no assistant turns: %w", ErrNothingToAnnotate)
	}

	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: Text(systemMessage)})

	for i, m := range messages {
		blocks := slices.Clone(m.Content)
		if len(blocks) == 0 {
			blocks = Text("")
		}

		if i == 0 {
			blocks = surround(blocks, []string{header(systemText, toolsDesc), beginFirstUser}, endFirstUser)
		}

		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				text, err := RenderToolCall(tc)
				if err != nil {
					return nil, &ToolCallConversionError{Message: i, Name: tc.Function.Name, Err: err}
				}
				if last := len(blocks) - 1; blocks[last].Type == "text" {
					blocks[last].Text = strings.TrimLeftFunc(blocks[last].Text+"\n\n"+text, unicode.IsSpace)
				} else {
					blocks = append(blocks, Block{Type: "text", Text: text})
				}
			}

		case RoleTool:
			if m.Content != nil && len(m.Content) == 0 {
				return nil, fmt.Errorf("message %d: tool result content is empty", i)
			}
			name := m.Name
			if name == "" {
				name = "function"
			}
			blocks = append(Text(fmt.Sprintf("EXECUTION RESULT of [%s]:\n", name)), blocks...)
			out = append(out, Message{Role: RoleUser, Content: blocks})
			continue

		case RoleUser:

		default:
			return nil, fmt.Errorf("message %d: unexpected role %q", i, m.Role)
		}

		if i == lastAssistant {
			blocks = surround(blocks, []string{beginLastAgent}, endLastAgent)
		}
		if i == lastUser && lastUser > lastAssistant {
			blocks = surround(blocks, []string{beginLastUser}, endLastUser, strings.TrimSpace(instruction))
		}

		out = append(out, Message{Role: m.Role, Content: blocks})
	}
	return out, nil
}

// HasUserFollowUp reports whether the transcript ends with a user turn that
// comes after the last assistant turn.
func HasUserFollowUp(payload Payload) bool {
	messages := slices.DeleteFunc(slices.Clone(payload.Messages), func(m Message) bool {
		return m.Role == RoleSystem
	})
	lastUser, lastAssistant := lastIndexes(messages)
	return lastUser >= 0 && lastUser > lastAssistant
}

func lastIndexes(messages []Message) (lastUser, lastAssistant int) {
	lastUser, lastAssistant = -1, -1
	for i, m := range messages {
		switch m.Role {
		case RoleUser:
			lastUser = i
		case RoleAssistant:
			lastAssistant = i
		}
	}
	return lastUser, lastAssistant
}

func header(systemText, toolsDesc string) string {
	var sb strings.Builder
	if systemText != "" {
		sb.WriteString("<< BEGIN ORIGINAL SYSTEM MESSAGE>>\n")
		sb.WriteString(systemText)
		sb.WriteString("\n<< END ORIGINAL SYSTEM MESSAGE >>\n\n")
	}
	sb.WriteString("<< BEGIN TOOLS DESCRIPTION >>\n")
	sb.WriteString(toolsDesc)
	sb.WriteString("\n<< END TOOLS DESCRIPTION >>\n\n")
	return sb.String()
}

// surround places text blocks before and after blocks.
func surround(blocks Content, before []string, after ...string) Content {
	out := make(Content, 0, len(before)+len(blocks)+len(after))
	for _, t := range before {
		out = append(out, Block{Type: "text", Text: t})
	}
	out = append(out, blocks...)
	for _, t := range after {
		out = append(out, Block{Type: "text", Text: t})
	}
	return out
}
