/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ToolSchema is a function-calling tool definition.
type ToolSchema struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function part of a ToolSchema.
type ToolFunction struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is the object schema of a tool's arguments. Required always
// marshals as a list, never null.
type Parameters struct {
	Type       string                                             `json:"type"`
	Properties *orderedmap.OrderedMap[string, *jsonschema.Schema] `json:"properties"`
	Required   []string                                           `json:"required"`
}

// Schema returns the parameters as a JSON Schema, for SDKs that take one.
func (p Parameters) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       p.Type,
		Properties: p.Properties,
		Required:   slices.Clone(p.Required),
	}
}

// ToolChoice forces the model to call one named function.
type ToolChoice struct {
	Type     string             `json:"type"`
	Function ToolChoiceFunction `json:"function"`
}

// ToolChoiceFunction names the forced function.
type ToolChoiceFunction struct {
	Name string `json:"name"`
}

// Compile flattens the rubric's features into a single tool schema.
// Features without a prediction type are skipped with a warning.
func (r *Rubric) Compile() *ToolSchema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	for _, f := range r.features {
		if f.Type == nil {
			slog.Warn("Skipping feature without a prediction type", "tool", r.toolName, "feature", f.Name)
			continue
		}
		for _, p := range f.Type.Properties(f.Name, f.Description, r.rationaleDescription) {
			props.Set(p.Key, p.Schema)
		}
	}

	required := []string{}
	if r.requiredAll {
		for pair := props.Oldest(); pair != nil; pair = pair.Next() {
			required = append(required, pair.Key)
		}
		slices.Sort(required)
	}

	return &ToolSchema{
		Type: "function",
		Function: ToolFunction{
			Name:        r.toolName,
			Description: r.toolDescription,
			Parameters: Parameters{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}

// ToolChoice returns the tool_choice value that forces this rubric's tool.
func (r *Rubric) ToolChoice() *ToolChoice {
	return &ToolChoice{Type: "function", Function: ToolChoiceFunction{Name: r.toolName}}
}

// Fingerprint is the hex SHA-256 of the compiled schema. Two rubrics with
// the same fingerprint ask the model exactly the same question.
func (r *Rubric) Fingerprint() (string, error) {
	b, err := json.Marshal(r.Compile())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
