/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package rubric compiles a declarative list of features into a single
// function-calling tool schema and decodes a model's tool-call arguments
// back into typed predictions.
//
// A Rubric is the single source of truth for both directions. Each Feature
// names a slot and binds it to a prediction.Type; Compile flattens every
// feature's properties into one JSON-Schema "function" definition and
// Decode rebuilds one FeatureData per feature from the returned arguments.
//
// # Compiling
//
//	r, err := rubric.New(rubric.Config{
//		ToolName:    "annotate_conversation",
//		RequiredAll: true,
//		Features: []rubric.Feature{{
//			Name:        "task_completed",
//			Description: "task finished",
//			Type:        prediction.Binary{},
//		}},
//	})
//	schema := r.Compile() // {"type":"function","function":{...}}
//
// Compile is deterministic: properties follow feature order and the required
// list is sorted, so two compilations of the same Rubric marshal to identical
// bytes.
//
// # Decoding
//
// Decode checks the tool name, parses the arguments and decodes each feature
// independently. A feature whose keys are missing or malformed is logged and
// skipped; the remaining features are still returned:
//
//	features, err := r.Decode(ctx, call.Name, []byte(call.Arguments))
//	if err != nil {
//		// *ToolNameMismatchError or *MalformedArgumentsError
//	}
//
// # Versioning
//
// MatchesSchema tells whether a stored set of arguments was produced by this
// rubric's schema, and Diff lists what changed between two revisions.
package rubric
