/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package googleannotator annotates with Gemini through the genai SDK, on
// either Vertex AI or the Gemini API.
//
// The compiled tool becomes a function declaration and the call is forced
// with function calling mode ANY restricted to the rubric's tool.
package googleannotator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/rubrics/agents/annotator"
	"chainguard.dev/rubrics/agents/retry"
	"chainguard.dev/rubrics/agents/rubric"
	"chainguard.dev/rubrics/agents/transcript"
	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"
)

const provider = "google"

// DefaultModel is used unless WithModel is given or the request already
// names a Gemini model.
const DefaultModel = "gemini-2.5-pro"

// Annotator implements annotator.Interface with the genai SDK.
type Annotator struct {
	client      *genai.Client
	model       string
	override    bool
	retryConfig retry.Config
}

var _ annotator.Interface = (*Annotator)(nil)

// Option configures an Annotator.
type Option func(*Annotator) error

// WithModel uses model for every request.
func WithModel(model string) Option {
	return func(a *Annotator) error {
		if !strings.HasPrefix(model, "gemini-") {
			return fmt.Errorf("model %q does not appear to be a Gemini model (expected gemini-* format)", model)
		}
		a.model = model
		a.override = true
		return nil
	}
}

// WithRetryConfig sets the retry configuration for quota and overload errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(a *Annotator) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		a.retryConfig = cfg
		return nil
	}
}

// New creates an Annotator over client.
func New(client *genai.Client, opts ...Option) (*Annotator, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	a := &Annotator{
		client:      client,
		model:       DefaultModel,
		retryConfig: retry.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return a, nil
}

func (a *Annotator) modelFor(req *rubric.Request) string {
	if !a.override && strings.HasPrefix(req.Model, "gemini-") {
		return req.Model
	}
	return a.model
}

// Annotate sends req to GenerateContent and returns the function call.
func (a *Annotator) Annotate(ctx context.Context, req *rubric.Request) (_ *rubric.ToolCall, err error) {
	ctx, cancel := annotator.WithDeadline(ctx, req)
	defer cancel()

	body := req.Body()
	body.Model = a.modelFor(req)
	contents, config := Content(body)

	ctx, call := annotator.StartCall(ctx, provider, body)
	defer func() { call.End(err) }()

	log := clog.FromContext(ctx).With("model", body.Model)

	tc, err := retry.Do(ctx, a.retryConfig, "generate_content", isRetryable, func(ctx context.Context) (*rubric.ToolCall, error) {
		resp, err := a.client.Models.GenerateContent(ctx, body.Model, contents, config)
		if err != nil {
			return nil, err
		}
		if resp.UsageMetadata != nil {
			call.RecordUsage(int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
		}
		if len(resp.Candidates) == 0 {
			return nil, errors.New("no content generated - no candidates")
		}
		candidate := resp.Candidates[0]
		if candidate.FinishReason == genai.FinishReasonMalformedFunctionCall {
			log.With("finish_message", candidate.FinishMessage).Warn("Model attempted a malformed function call")
			return nil, ErrMalformedFunctionCall
		}
		return functionCall(candidate)
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	call.RecordToolCall(tc.Name)
	return tc, nil
}

func functionCall(candidate *genai.Candidate) (*rubric.ToolCall, error) {
	if candidate.Content == nil {
		return nil, rubric.ErrNoToolCalls
	}
	for _, part := range candidate.Content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		args, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			return nil, fmt.Errorf("marshaling function call arguments: %w", err)
		}
		return &rubric.ToolCall{Name: part.FunctionCall.Name, Arguments: string(args)}, nil
	}
	return nil, rubric.ErrNoToolCalls
}

// Content converts req into genai contents and config. System turns become
// the system instruction, assistant turns become model turns, and consecutive
// turns with the same role are merged.
func Content(req *rubric.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		config.Temperature = &t
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		var parts []*genai.Part
		for _, b := range m.Content {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, &genai.Part{Text: b.Text})
			}
		}
		if len(parts) == 0 {
			continue
		}

		if m.Role == transcript.RoleSystem {
			if config.SystemInstruction == nil {
				config.SystemInstruction = &genai.Content{}
			}
			config.SystemInstruction.Parts = append(config.SystemInstruction.Parts, parts...)
			continue
		}
		role := "user"
		if m.Role == transcript.RoleAssistant {
			role = "model"
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	var names []string
	decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
	for _, t := range req.Tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  schemaToGenai(t.Function.Parameters.Schema()),
		})
		names = append(names, t.Function.Name)
	}
	if len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if req.ToolChoice != nil {
		names = []string{req.ToolChoice.Function.Name}
	}
	if len(names) > 0 {
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: names,
			},
		}
	}
	return contents, config
}
