/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleannotator

import (
	"errors"
	"strings"
)

// ErrMalformedFunctionCall is returned when Gemini finished with a malformed
// function call. It is retried like a transient error.
var ErrMalformedFunctionCall = errors.New("model produced a malformed function call")

// isRetryable reports whether err is a transient Vertex AI or Gemini error.
// The genai SDK does not expose typed status errors for every backend, so
// the message is matched.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedFunctionCall) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "Internal error") ||
		strings.Contains(errStr, "server error")
}
