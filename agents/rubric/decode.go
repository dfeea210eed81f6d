/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/rubrics/agents/rubric/params"
	"github.com/chainguard-dev/clog"
)

// ErrNoPredictionType is returned when decoding a feature that has no type.
var ErrNoPredictionType = errors.New("feature has no prediction type")

// ToolNameMismatchError reports a tool call that does not belong to the rubric.
type ToolNameMismatchError struct {
	Want string
	Got  string
}

func (e *ToolNameMismatchError) Error() string {
	return fmt.Sprintf("tool call %q does not match rubric tool %q", e.Got, e.Want)
}

// MalformedArgumentsError reports tool-call arguments that are not a JSON object.
type MalformedArgumentsError struct {
	Err error
}

func (e *MalformedArgumentsError) Error() string {
	return fmt.Sprintf("malformed tool call arguments: %v", e.Err)
}

func (e *MalformedArgumentsError) Unwrap() error { return e.Err }

// Decode decodes a tool call produced against this rubric. The tool name must
// match and the arguments must be a JSON object; after that each feature is
// decoded on its own and failures only drop the failing feature.
func (r *Rubric) Decode(ctx context.Context, name string, arguments []byte) ([]FeatureData, error) {
	if name != r.toolName {
		return nil, &ToolNameMismatchError{Want: r.toolName, Got: name}
	}
	args, err := ParseArguments(arguments)
	if err != nil {
		return nil, err
	}
	return r.DecodeArgs(ctx, args), nil
}

// DecodeToolCall is Decode for a parsed completion.
func (r *Rubric) DecodeToolCall(ctx context.Context, call *ToolCall) ([]FeatureData, error) {
	return r.Decode(ctx, call.Name, []byte(call.Arguments))
}

// DecodeArgs decodes every feature from an already parsed argument map,
// logging and skipping the ones that fail.
func (r *Rubric) DecodeArgs(ctx context.Context, args map[string]any) []FeatureData {
	log := clog.FromContext(ctx).With("tool", r.toolName)

	out := make([]FeatureData, 0, len(r.features))
	for _, f := range r.features {
		fd, err := r.DecodeFeature(f, args)
		if err != nil {
			featureDecodes.WithLabelValues(r.toolName, "failed").Inc()
			log.With("feature", f.Name).
				With("raw_keys", params.WithPrefix(args, f.Name)).
				With("error", err.Error()).
				Warn("Skipping feature that failed to decode")
			continue
		}
		featureDecodes.WithLabelValues(r.toolName, "ok").Inc()
		out = append(out, fd)
	}
	return out
}

// DecodeFeature decodes a single feature from args.
func (r *Rubric) DecodeFeature(f Feature, args map[string]any) (FeatureData, error) {
	if f.Type == nil {
		return FeatureData{}, fmt.Errorf("%s: %w", f.Name, ErrNoPredictionType)
	}
	v, err := f.Type.Decode(f.Name, args)
	if err != nil {
		return FeatureData{}, err
	}
	return FeatureData{Feature: f, Prediction: v}, nil
}

// MatchesSchema reports whether the key set of args is exactly the key set
// of this rubric's compiled schema.
func (r *Rubric) MatchesSchema(args map[string]any) bool {
	keys := r.Keys()
	if len(keys) != len(args) {
		return false
	}
	for _, k := range keys {
		if _, ok := args[k]; !ok {
			return false
		}
	}
	return true
}

// ParseArguments parses tool-call arguments into a flat map. Arguments
// wrapped in a markdown code fence are accepted.
func ParseArguments(arguments []byte) (map[string]any, error) {
	args, err := parseObject(arguments)
	if err == nil {
		return args, nil
	}
	if fenced := extractFenced(string(arguments)); fenced != "" {
		if args, ferr := parseObject([]byte(fenced)); ferr == nil {
			return args, nil
		}
	}
	return nil, &MalformedArgumentsError{Err: err}
}

func parseObject(data []byte) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, errors.New("arguments are not a JSON object")
	}
	return args, nil
}

// extractFenced returns the body of the first ```json (or bare ```) block,
// or "" when the text has no fence.
func extractFenced(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var buf bytes.Buffer
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock && (trimmed == "```json" || trimmed == "```") {
			inBlock = true
			continue
		}
		if inBlock && trimmed == "```" {
			break
		}
		if inBlock {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(line)
		}
	}
	return strings.TrimSpace(buf.String())
}
