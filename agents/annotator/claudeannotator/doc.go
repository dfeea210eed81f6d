/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeannotator annotates with Claude, either through the
// Anthropic API or through Vertex AI.
//
// Requests are built in the chat completions shape by the rubric package;
// this package converts them to Messages API parameters: system turns become
// the system prompt, the compiled tool becomes a Claude tool with its JSON
// schema as input_schema, and the forced tool choice becomes a "tool" choice.
//
// # Usage
//
//	client := anthropic.NewClient(
//	    vertex.WithGoogleAuth(ctx, region, projectID),
//	)
//
//	a, err := claudeannotator.New(client,
//	    claudeannotator.WithModel("claude-sonnet-4@20250514"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	pool, err := annotator.NewPool(a, r)
package claudeannotator
