/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prediction

import (
	"slices"

	"chainguard.dev/rubrics/agents/rubric/params"
	"github.com/invopop/jsonschema"
)

// Property is a single flattened tool-schema property.
type Property struct {
	Key    string
	Schema *jsonschema.Schema
}

// Type is the shape of a feature's answer. The set of implementations is
// closed: Binary, Text and Classification.
type Type interface {
	// Name identifies the shape ("binary", "text", "classification").
	Name() string

	// Properties returns the tool-schema properties for field, in a fixed order.
	Properties(field, description, rationaleDescription string) []Property

	// Keys returns the property keys Properties emits and Decode reads.
	Keys(field string) []string

	// Decode rebuilds a Value for field from a flat argument map.
	Decode(field string, args map[string]any) (Value, error)

	sealed()
}

// Value is a decoded answer for one feature.
type Value interface {
	// ToolArgs returns the flat arguments that decode back into this value.
	ToolArgs(field string) map[string]any

	sealedValue()
}

const (
	detectedSuffix  = "_detected"
	rationaleSuffix = "_rationale"
	textSuffix      = "_text"
)

// Binary is a boolean detection with a short rationale.
type Binary struct{}

// BinaryPrediction is the decoded form of Binary.
type BinaryPrediction struct {
	Detected  bool   `json:"detected"`
	Rationale string `json:"rationale"`
}

func (Binary) Name() string { return "binary" }

func (Binary) Properties(field, description, rationaleDescription string) []Property {
	return []Property{{
		Key:    field + detectedSuffix,
		Schema: &jsonschema.Schema{Type: "boolean", Description: description},
	}, {
		Key:    field + rationaleSuffix,
		Schema: &jsonschema.Schema{Type: "string", Description: rationaleDescription},
	}}
}

func (Binary) Keys(field string) []string {
	return []string{field + detectedSuffix, field + rationaleSuffix}
}

func (Binary) Decode(field string, args map[string]any) (Value, error) {
	key := field + detectedSuffix
	detected, err := params.Extract[bool](args, key)
	if err != nil {
		return nil, fieldError(field, key, err)
	}
	rationale, err := rationaleOf(field, args)
	if err != nil {
		return nil, err
	}
	return &BinaryPrediction{Detected: detected, Rationale: rationale}, nil
}

func (Binary) sealed() {}

func (p *BinaryPrediction) ToolArgs(field string) map[string]any {
	return map[string]any{
		field + detectedSuffix:  p.Detected,
		field + rationaleSuffix: p.Rationale,
	}
}

func (*BinaryPrediction) sealedValue() {}

// Text is a free-text answer.
type Text struct{}

// TextPrediction is the decoded form of Text.
type TextPrediction struct {
	Text string `json:"text"`
}

func (Text) Name() string { return "text" }

// Properties ignores rationaleDescription; text answers carry no rationale.
func (Text) Properties(field, description, _ string) []Property {
	return []Property{{
		Key:    field + textSuffix,
		Schema: &jsonschema.Schema{Type: "string", Description: description},
	}}
}

func (Text) Keys(field string) []string {
	return []string{field + textSuffix}
}

func (Text) Decode(field string, args map[string]any) (Value, error) {
	key := field + textSuffix
	text, err := params.Extract[string](args, key)
	if err != nil {
		return nil, fieldError(field, key, err)
	}
	return &TextPrediction{Text: text}, nil
}

func (Text) sealed() {}

func (p *TextPrediction) ToolArgs(field string) map[string]any {
	return map[string]any{field + textSuffix: p.Text}
}

func (*TextPrediction) sealedValue() {}

// Classification is a single label drawn from a declared set, with a rationale.
// A Classification without labels accepts any string.
type Classification struct {
	labels []string
}

// NewClassification returns a Classification over labels. Duplicate labels
// are collapsed; declaration order is kept.
func NewClassification[L ~string](labels ...L) Classification {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !slices.Contains(out, string(l)) {
			out = append(out, string(l))
		}
	}
	return Classification{labels: out}
}

// ClassificationPrediction is the decoded form of Classification.
type ClassificationPrediction struct {
	Label     string `json:"label"`
	Rationale string `json:"rationale"`
}

// Labels returns a copy of the declared labels.
func (c Classification) Labels() []string {
	return slices.Clone(c.labels)
}

func (Classification) Name() string { return "classification" }

func (c Classification) Properties(field, description, rationaleDescription string) []Property {
	label := &jsonschema.Schema{Type: "string", Description: description}
	if len(c.labels) > 0 {
		label.Enum = make([]any, 0, len(c.labels))
		for _, l := range c.labels {
			label.Enum = append(label.Enum, l)
		}
	}
	return []Property{{
		Key:    field,
		Schema: label,
	}, {
		Key:    field + rationaleSuffix,
		Schema: &jsonschema.Schema{Type: "string", Description: rationaleDescription},
	}}
}

func (Classification) Keys(field string) []string {
	return []string{field, field + rationaleSuffix}
}

func (c Classification) Decode(field string, args map[string]any) (Value, error) {
	label, err := params.Extract[string](args, field)
	if err != nil {
		return nil, fieldError(field, field, err)
	}
	if len(c.labels) > 0 && !slices.Contains(c.labels, label) {
		return nil, &InvalidLabelError{Field: field, Label: label, Allowed: c.Labels()}
	}
	rationale, err := rationaleOf(field, args)
	if err != nil {
		return nil, err
	}
	return &ClassificationPrediction{Label: label, Rationale: rationale}, nil
}

func (Classification) sealed() {}

func (p *ClassificationPrediction) ToolArgs(field string) map[string]any {
	return map[string]any{
		field:                   p.Label,
		field + rationaleSuffix: p.Rationale,
	}
}

func (*ClassificationPrediction) sealedValue() {}

// LabelAs returns the label of p converted to a caller-defined label type.
func LabelAs[L ~string](p *ClassificationPrediction) L {
	return L(p.Label)
}

// Equal reports whether a and b describe the same shape.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, aok := a.(Classification)
	cb, bok := b.(Classification)
	if aok || bok {
		return aok && bok && slices.Equal(ca.labels, cb.labels)
	}
	return a.Name() == b.Name()
}

func rationaleOf(field string, args map[string]any) (string, error) {
	key := field + rationaleSuffix
	rationale, err := params.ExtractOptional(args, key, "")
	if err != nil {
		return "", fieldError(field, key, err)
	}
	return rationale, nil
}
