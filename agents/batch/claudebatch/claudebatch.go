/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudebatch is a batch.Provider for the Anthropic Message Batches
// API.
//
// Lines are converted to Messages API params the same way live Claude
// annotation converts them. Results are rewritten into the OpenAI batch
// output shape so the driver decodes every provider's output alike.
package claudebatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chainguard.dev/rubrics/agents/annotator/claudeannotator"
	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// Provider submits shards as message batches.
type Provider struct {
	client anthropic.Client
	model  string
}

var (
	_ batch.Provider  = (*Provider)(nil)
	_ batch.Retryable = (*Provider)(nil)
)

// Option configures a Provider.
type Option func(*Provider) error

// WithModel sends every line to model instead of the line's own model.
func WithModel(model string) Option {
	return func(p *Provider) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
		}
		p.model = model
		return nil
	}
}

// New returns a Provider over client.
func New(client anthropic.Client, opts ...Option) (*Provider, error) {
	p := &Provider{client: client}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return p, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) modelFor(line batch.Line) string {
	switch {
	case p.model != "":
		return p.model
	case strings.HasPrefix(line.Body.Model, "claude-"):
		return line.Body.Model
	default:
		return claudeannotator.DefaultModel
	}
}

// Create converts the shard's lines and creates one message batch.
func (p *Provider) Create(ctx context.Context, shard *batch.Shard) (*batch.Metadata, error) {
	reqs := make([]anthropic.MessageBatchNewParamsRequest, 0, len(shard.Lines))
	for _, line := range shard.Lines {
		mp := claudeannotator.MessageParams(ctx, line.Body, p.modelFor(line))
		reqs = append(reqs, anthropic.MessageBatchNewParamsRequest{
			CustomID: line.CustomID,
			Params: anthropic.MessageBatchNewParamsRequestParams{
				Model:       mp.Model,
				MaxTokens:   mp.MaxTokens,
				Messages:    mp.Messages,
				System:      mp.System,
				Temperature: mp.Temperature,
				Tools:       mp.Tools,
				ToolChoice:  mp.ToolChoice,
			},
		})
	}

	b, err := p.client.Messages.Batches.New(ctx, anthropic.MessageBatchNewParams{Requests: reqs})
	if err != nil {
		return nil, fmt.Errorf("creating message batch: %w", err)
	}
	return &batch.Metadata{
		BatchID:   b.ID,
		Status:    status(b),
		CreatedAt: b.CreatedAt.Unix(),
	}, nil
}

// Retrieve returns the batch's state with its status normalized.
func (p *Provider) Retrieve(ctx context.Context, batchID string) (*batch.Job, error) {
	b, err := p.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	c := b.RequestCounts
	return &batch.Job{
		ID:     b.ID,
		Status: status(b),
		Counts: batch.RequestCounts{
			Total:     c.Processing + c.Succeeded + c.Errored + c.Canceled + c.Expired,
			Completed: c.Succeeded,
			Failed:    c.Errored + c.Canceled + c.Expired,
		},
	}, nil
}

// status maps processing_status onto the normalized vocabulary. An ended
// batch with no processed request reports how it ended instead.
func status(b *anthropic.MessageBatch) string {
	switch b.ProcessingStatus {
	case anthropic.MessageBatchProcessingStatusInProgress:
		return batch.StatusInProgress
	case anthropic.MessageBatchProcessingStatusCanceling:
		return batch.StatusCancelling
	case anthropic.MessageBatchProcessingStatusEnded:
		c := b.RequestCounts
		switch {
		case c.Succeeded+c.Errored > 0:
			return batch.StatusCompleted
		case c.Canceled > 0:
			return batch.StatusCancelled
		case c.Expired > 0:
			return batch.StatusExpired
		}
		return batch.StatusCompleted
	default:
		return string(b.ProcessingStatus)
	}
}

// Results streams the batch results and rewrites each into an OpenAI output
// line: succeeded results become a 200 chat completion, everything else an
// error record.
func (p *Provider) Results(ctx context.Context, job *batch.Job) (io.ReadCloser, error) {
	log := clog.FromContext(ctx).With("batch_id", job.ID)

	stream := p.client.Messages.Batches.ResultsStreaming(ctx, job.ID)
	defer stream.Close()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for stream.Next() {
		res := stream.Current()
		line := batch.OutputLine{CustomID: res.CustomID}

		if res.Result.Type == "succeeded" {
			body, err := completion(&res.Result.Message)
			if err != nil {
				log.With("custom_id", res.CustomID).Warnf("Failed to convert message: %v", err)
				continue
			}
			line.Response = &batch.OutputResponse{StatusCode: http.StatusOK, Body: body}
		} else {
			line.Error = json.RawMessage(res.Result.RawJSON())
		}
		if err := enc.Encode(line); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("streaming results of %s: %w", job.ID, err)
	}
	return io.NopCloser(&buf), nil
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// completion renders msg as an OpenAI chat completion body. Text goes to
// content and the first tool_use block becomes the tool call.
func completion(msg *anthropic.Message) (json.RawMessage, error) {
	choice := chatChoice{
		FinishReason: "stop",
		Message:      chatMessage{Role: "assistant"},
	}

	var text []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = append(text, block.Text)
		}
	}
	choice.Message.Content = strings.Join(text, "\n")

	if tc, err := claudeannotator.ToolCall(msg); err == nil {
		choice.Message.ToolCalls = []toolCall{{
			ID:       toolUseID(msg),
			Type:     "function",
			Function: toolFunction{Name: tc.Name, Arguments: tc.Arguments},
		}}
		choice.FinishReason = "tool_calls"
	}

	return json.Marshal(chatCompletion{
		ID:      msg.ID,
		Object:  "chat.completion",
		Model:   string(msg.Model),
		Choices: []chatChoice{choice},
		Usage: chatUsage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
			TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	})
}

func toolUseID(msg *anthropic.Message) string {
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			return block.ID
		}
	}
	return ""
}

// IsRetryable retries the statuses Claude annotation retries, the other
// transient statuses and transport errors.
func (p *Provider) IsRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return claudeannotator.IsRetryable(err) || retry.StatusCode(apiErr.StatusCode)
	}
	return retry.Always(err)
}
