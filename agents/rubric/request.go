/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/rubrics/agents/transcript"
)

// DefaultModel is the model requests are built for unless overridden.
const DefaultModel = "o3-2025-04-16"

var (
	// ErrNoUserMessage is returned when building a transcript request for a
	// rubric without an annotation instruction.
	ErrNoUserMessage = errors.New("rubric has no user message")
	// ErrNoChoices is returned for a completion without choices.
	ErrNoChoices = errors.New("completion has no choices")
	// ErrNoToolCalls is returned for a completion whose first choice made no tool call.
	ErrNoToolCalls = errors.New("completion has no tool calls")
)

// Request is a chat completion request in the OpenAI wire shape.
type Request struct {
	Model       string               `json:"model"`
	Messages    []transcript.Message `json:"messages"`
	Tools       []*ToolSchema        `json:"tools"`
	ToolChoice  *ToolChoice          `json:"tool_choice,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	// Timeout is in seconds. It bounds the client call and is never sent to
	// a provider; see Body.
	Timeout float64 `json:"timeout,omitempty"`
}

// RequestOption customizes a Request.
type RequestOption func(*Request)

// WithModel sets the model.
func WithModel(model string) RequestOption {
	return func(r *Request) { r.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) RequestOption {
	return func(r *Request) { r.Temperature = &t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) RequestOption {
	return func(r *Request) { r.MaxTokens = n }
}

// WithTimeout bounds a single call.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = d.Seconds() }
}

// AnnotationRequest transforms a transcript and wraps it with the compiled
// tool. It returns transcript.ErrNothingToAnnotate when the transcript has
// no user or no assistant turn.
func (r *Rubric) AnnotationRequest(ctx context.Context, payload transcript.Payload, opts ...RequestOption) (*Request, error) {
	if r.userMessage == "" {
		return nil, ErrNoUserMessage
	}
	messages, err := transcript.Transform(ctx, payload, r.systemMessage, r.userMessage)
	if err != nil {
		return nil, err
	}
	return r.request(messages, opts), nil
}

// TextRequest asks the rubric's questions about a standalone text, such as
// an issue report.
func (r *Rubric) TextRequest(text string, opts ...RequestOption) *Request {
	content := transcript.Text(text)
	if r.userMessage != "" {
		content = append(content, transcript.Block{Type: "text", Text: r.userMessage})
	}
	return r.request([]transcript.Message{
		{Role: transcript.RoleSystem, Content: transcript.Text(r.systemMessage)},
		{Role: transcript.RoleUser, Content: content},
	}, opts)
}

func (r *Rubric) request(messages []transcript.Message, opts []RequestOption) *Request {
	temperature := 0.0
	req := &Request{
		Model:       DefaultModel,
		Messages:    messages,
		Tools:       []*ToolSchema{r.Compile()},
		ToolChoice:  r.ToolChoice(),
		Temperature: &temperature,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// Body returns a shallow copy of the request as sent to a provider, without
// the client-side timeout.
func (r *Request) Body() *Request {
	body := *r
	body.Timeout = 0
	return &body
}

// Deadline returns the per-call timeout, or zero when unset.
func (r *Request) Deadline() time.Duration {
	return time.Duration(r.Timeout * float64(time.Second))
}

// ToolCall is the function call extracted from a completion.
type ToolCall struct {
	Name      string
	Arguments string
}

type completion struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ParseCompletion extracts choices[0].message.tool_calls[0].function from a
// chat completion response body.
func ParseCompletion(body []byte) (*ToolCall, error) {
	var c completion
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("parsing completion: %w", err)
	}
	if len(c.Choices) == 0 {
		return nil, ErrNoChoices
	}
	calls := c.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, ErrNoToolCalls
	}
	return &ToolCall{Name: calls[0].Function.Name, Arguments: calls[0].Function.Arguments}, nil
}
