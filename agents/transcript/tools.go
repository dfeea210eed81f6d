/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrInvalidTool is returned when a tool definition matches neither the
// function format nor the name/input_schema format.
var ErrInvalidTool = errors.New("invalid tool definition")

// Tool is a tool definition in function format.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable function. Parameters is a JSON Schema object
// kept verbatim so that property order survives.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// legacyTool is the {name, description, input_schema} format used by trace
// exporters and the Anthropic API.
type legacyTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ReformatTools converts raw tool definitions to function format. If every
// definition is already in function format they are returned unchanged;
// otherwise every definition must carry a name and an object input_schema.
func ReformatTools(raw []json.RawMessage) ([]Tool, error) {
	tools := make([]Tool, 0, len(raw))
	expected := true
	for _, r := range raw {
		var t Tool
		if err := json.Unmarshal(r, &t); err != nil || t.Type != "function" || t.Function.Name == "" || !isObject(t.Function.Parameters) {
			expected = false
			break
		}
		tools = append(tools, t)
	}
	if expected {
		return tools, nil
	}

	tools = tools[:0]
	for i, r := range raw {
		var lt legacyTool
		if err := json.Unmarshal(r, &lt); err != nil {
			return nil, fmt.Errorf("tool %d: %w: %w", i, ErrInvalidTool, err)
		}
		if lt.Name == "" {
			return nil, fmt.Errorf("tool %d: %w: missing name", i, ErrInvalidTool)
		}
		if !isObject(lt.InputSchema) {
			return nil, fmt.Errorf("tool %s: %w: input_schema must be an object", lt.Name, ErrInvalidTool)
		}
		tools = append(tools, Tool{
			Type: "function",
			Function: Function{
				Name:        lt.Name,
				Description: lt.Description,
				Parameters:  lt.InputSchema,
			},
		})
	}
	return tools, nil
}

type parameterInfo struct {
	Type        any     `json:"type"`
	Description *string `json:"description"`
	Enum        []any   `json:"enum"`
}

type parameterSchema struct {
	Properties *orderedmap.OrderedMap[string, parameterInfo] `json:"properties"`
	Required   []string                                      `json:"required"`
}

// DescribeTools renders tool definitions as numbered plain text blocks, one
// line per parameter in declaration order.
func DescribeTools(tools []Tool) (string, error) {
	var sb strings.Builder
	for i, tool := range tools {
		fn := tool.Function
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "---- BEGIN FUNCTION #%d: %s ----\n", i+1, fn.Name)
		fmt.Fprintf(&sb, "Description: %s\n", fn.Description)

		if len(fn.Parameters) == 0 {
			sb.WriteString("No parameters are required for this function.\n")
		} else {
			var ps parameterSchema
			if err := json.Unmarshal(fn.Parameters, &ps); err != nil {
				return "", fmt.Errorf("tool %s: parsing parameters: %w", fn.Name, err)
			}
			sb.WriteString("Parameters:\n")
			if ps.Properties != nil {
				j := 0
				for pair := ps.Properties.Oldest(); pair != nil; pair = pair.Next() {
					j++
					status := "optional"
					if slices.Contains(ps.Required, pair.Key) {
						status = "required"
					}
					fmt.Fprintf(&sb, "  (%d) %s (%s, %s): %s\n", j, pair.Key, typeName(pair.Value.Type), status, describeParameter(pair.Value))
				}
			}
		}
		fmt.Fprintf(&sb, "---- END FUNCTION #%d ----\n", i+1)
	}
	return sb.String(), nil
}

func describeParameter(p parameterInfo) string {
	desc := "No description provided"
	if p.Description != nil {
		desc = *p.Description
	}
	if p.Enum != nil {
		values := make([]string, 0, len(p.Enum))
		for _, v := range p.Enum {
			values = append(values, fmt.Sprintf("`%v`", v))
		}
		desc += "\nAllowed values: [" + strings.Join(values, ", ") + "]"
	}
	return desc
}

func typeName(t any) string {
	switch v := t.(type) {
	case nil:
		return "string"
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
