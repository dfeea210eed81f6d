/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package params extracts typed values from the flat argument maps that
// models return in tool calls.
//
// Models send explicit nulls for answers they skipped. Extract treats a null
// like a missing key, so prediction decoders can ask for a bool or a string
// and get a precise error when the model sent nothing or something else.
package params
