/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package transcript reshapes a raw, tool-augmented chat transcript into the
// message list an annotator model reads.
//
// The annotator never sees native tool calls. Transform inlines them as
// pseudo-markup, turns tool results into user turns, embeds the original
// system prompt and a rendering of the available tools into the first turn,
// and brackets the last agent turn (and a trailing user follow-up, if any)
// with begin/end markers followed by the annotation instruction.
//
// Transform is pure: the input payload is never modified.
package transcript
