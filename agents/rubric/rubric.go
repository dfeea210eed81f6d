/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// DefaultToolDescription is used when Config.ToolDescription is empty.
	DefaultToolDescription = "Annotate agent conversation."
	// DefaultRationaleDescription is the shared description of every rationale property.
	DefaultRationaleDescription = "Brief evidence/quote (≤25 words) explaining why."
)

var (
	// ErrInvalidFeature is returned for a feature without a name or description.
	ErrInvalidFeature = errors.New("invalid feature")
	// ErrDuplicateFeature is returned when two features share a name.
	ErrDuplicateFeature = errors.New("duplicate feature name")
	// ErrKeyCollision is returned when two features would emit the same property key.
	ErrKeyCollision = errors.New("property key collision")
)

// Config declares a rubric.
type Config struct {
	ToolName             string
	ToolDescription      string
	RationaleDescription string

	// SystemMessage is sent as the leading system turn of every request.
	SystemMessage string
	// UserMessage is the annotation instruction appended after the transcript.
	UserMessage string

	Features []Feature

	// RequiredAll marks every property as required in the compiled schema.
	RequiredAll bool
}

// Rubric is an immutable, validated set of features plus the prompts and
// tool metadata used to ask for them.
type Rubric struct {
	toolName             string
	toolDescription      string
	rationaleDescription string
	systemMessage        string
	userMessage          string
	features             []Feature
	requiredAll          bool
}

// New validates cfg and returns a Rubric. Feature names must be unique and
// no two features may produce the same property key. A feature without a
// prediction type is accepted and left out of the compiled schema.
func New(cfg Config) (*Rubric, error) {
	if cfg.ToolName == "" {
		return nil, errors.New("tool name is required")
	}
	if cfg.ToolDescription == "" {
		cfg.ToolDescription = DefaultToolDescription
	}
	if cfg.RationaleDescription == "" {
		cfg.RationaleDescription = DefaultRationaleDescription
	}

	names := make(map[string]struct{}, len(cfg.Features))
	owners := make(map[string]string)
	for i, f := range cfg.Features {
		if f.Name == "" {
			return nil, fmt.Errorf("feature %d: %w: name is required", i, ErrInvalidFeature)
		}
		if f.Description == "" {
			return nil, fmt.Errorf("feature %s: %w: description is required", f.Name, ErrInvalidFeature)
		}
		if _, ok := names[f.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFeature, f.Name)
		}
		names[f.Name] = struct{}{}

		for _, k := range f.Keys() {
			if other, ok := owners[k]; ok {
				return nil, fmt.Errorf("%w: %q is produced by both %s and %s", ErrKeyCollision, k, other, f.Name)
			}
			owners[k] = f.Name
		}
	}

	return &Rubric{
		toolName:             cfg.ToolName,
		toolDescription:      cfg.ToolDescription,
		rationaleDescription: cfg.RationaleDescription,
		systemMessage:        cfg.SystemMessage,
		userMessage:          cfg.UserMessage,
		features:             slices.Clone(cfg.Features),
		requiredAll:          cfg.RequiredAll,
	}, nil
}

func (r *Rubric) ToolName() string             { return r.toolName }
func (r *Rubric) ToolDescription() string      { return r.toolDescription }
func (r *Rubric) RationaleDescription() string { return r.rationaleDescription }
func (r *Rubric) SystemMessage() string        { return r.systemMessage }
func (r *Rubric) UserMessage() string          { return r.userMessage }
func (r *Rubric) RequiredAll() bool            { return r.requiredAll }

// Features returns a copy of the features in declaration order.
func (r *Rubric) Features() []Feature {
	return slices.Clone(r.features)
}

// Feature looks up a feature by name.
func (r *Rubric) Feature(name string) (Feature, bool) {
	i := slices.IndexFunc(r.features, func(f Feature) bool { return f.Name == name })
	if i < 0 {
		return Feature{}, false
	}
	return r.features[i], true
}

// Config returns a copy of the configuration the rubric was built from,
// with defaults applied. It is the starting point for deriving a variant.
func (r *Rubric) Config() Config {
	return Config{
		ToolName:             r.toolName,
		ToolDescription:      r.toolDescription,
		RationaleDescription: r.rationaleDescription,
		SystemMessage:        r.systemMessage,
		UserMessage:          r.userMessage,
		Features:             r.Features(),
		RequiredAll:          r.requiredAll,
	}
}

// Keys returns every property key of the compiled schema, in schema order.
func (r *Rubric) Keys() []string {
	var keys []string
	for _, f := range r.features {
		keys = append(keys, f.Keys()...)
	}
	return keys
}
