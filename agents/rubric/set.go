/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"context"
	"errors"
	"strings"
)

// Decoder turns a tool call into feature predictions. *Rubric and *Set
// implement it.
type Decoder interface {
	DecodeToolCall(ctx context.Context, call *ToolCall) ([]FeatureData, error)
}

var (
	_ Decoder = (*Rubric)(nil)
	_ Decoder = (*Set)(nil)
)

// Set decodes tool calls produced against any of several rubrics, for
// outputs of a run that picked its rubric per item.
type Set struct {
	rubrics []*Rubric
}

// NewSet returns a Set over rubrics. Earlier rubrics win ties in Match.
func NewSet(rubrics ...*Rubric) (*Set, error) {
	if len(rubrics) == 0 {
		return nil, errors.New("a rubric set needs at least one rubric")
	}
	for _, r := range rubrics {
		if r == nil {
			return nil, errors.New("rubric set contains a nil rubric")
		}
	}
	return &Set{rubrics: rubrics}, nil
}

// Rubrics returns the rubrics of the set in order.
func (s *Set) Rubrics() []*Rubric {
	return append([]*Rubric(nil), s.rubrics...)
}

// Match returns the rubric a tool call was produced against. Among the
// rubrics named name, one whose schema matches args exactly wins; otherwise
// the one with the most of its keys present in args.
func (s *Set) Match(name string, args map[string]any) (*Rubric, error) {
	var (
		best    *Rubric
		bestHit = -1
	)
	for _, r := range s.rubrics {
		if r.toolName != name {
			continue
		}
		if r.MatchesSchema(args) {
			return r, nil
		}
		hit := 0
		for _, k := range r.Keys() {
			if _, ok := args[k]; ok {
				hit++
			}
		}
		if hit > bestHit {
			best, bestHit = r, hit
		}
	}
	if best == nil {
		return nil, &ToolNameMismatchError{Want: strings.Join(s.toolNames(), "|"), Got: name}
	}
	return best, nil
}

// DecodeToolCall decodes call with the rubric Match selects.
func (s *Set) DecodeToolCall(ctx context.Context, call *ToolCall) ([]FeatureData, error) {
	if !s.hasTool(call.Name) {
		return nil, &ToolNameMismatchError{Want: strings.Join(s.toolNames(), "|"), Got: call.Name}
	}
	args, err := ParseArguments([]byte(call.Arguments))
	if err != nil {
		return nil, err
	}
	r, err := s.Match(call.Name, args)
	if err != nil {
		return nil, err
	}
	return r.DecodeArgs(ctx, args), nil
}

func (s *Set) hasTool(name string) bool {
	for _, r := range s.rubrics {
		if r.toolName == name {
			return true
		}
	}
	return false
}

func (s *Set) toolNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range s.rubrics {
		if !seen[r.toolName] {
			seen[r.toolName] = true
			names = append(names, r.toolName)
		}
	}
	return names
}
