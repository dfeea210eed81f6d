/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleannotator

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// schemaToGenai converts the subset of JSON Schema that rubric properties
// use. Property order is kept through PropertyOrdering.
func schemaToGenai(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Title:       s.Title,
		Type:        mapSchemaType(s.Type),
	}

	if len(s.Enum) > 0 {
		out.Enum = make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			out.Enum = append(out.Enum, fmt.Sprint(v))
		}
		if out.Type == genai.TypeString {
			out.Format = "enum"
		}
	}

	if len(s.Required) > 0 {
		out.Required = append(out.Required, s.Required...)
	}

	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, s.Properties.Len())
		ordering := make([]string, 0, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = schemaToGenai(pair.Value)
			ordering = append(ordering, pair.Key)
		}
		if len(ordering) > 0 {
			out.PropertyOrdering = ordering
		}
	}

	if s.Items != nil {
		out.Items = schemaToGenai(s.Items)
	}
	return out
}

var schemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// mapSchemaType returns TypeUnspecified for anything it does not know.
func mapSchemaType(t string) genai.Type {
	if gt, ok := schemaTypes[t]; ok {
		return gt
	}
	return genai.TypeUnspecified
}
