/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ToolCallConversionError reports a tool call that cannot be rendered as text.
type ToolCallConversionError struct {
	Message int
	Name    string
	Err     error
}

func (e *ToolCallConversionError) Error() string {
	return fmt.Sprintf("message %d: converting tool call %q: %v", e.Message, e.Name, e.Err)
}

func (e *ToolCallConversionError) Unwrap() error { return e.Err }

// RenderToolCall renders a tool call as inline pseudo-markup:
//
//	<function=NAME>
//	<parameter=KEY>VALUE</parameter>
//	</function>
//
// Arguments keep their original order. Multi-line string values are
// surrounded by newlines. Arrays and objects are rendered as JSON with ", "
// and ": " separators and ASCII-escaped strings; booleans and null read
// True, False and None.
func RenderToolCall(tc ToolCall) (string, error) {
	if tc.Type != "" && tc.Type != "function" {
		return "", fmt.Errorf("tool call type must be %q, got %q", "function", tc.Type)
	}

	args := orderedmap.New[string, json.RawMessage]()
	if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), args); err != nil {
			return "", fmt.Errorf("arguments are not a JSON object: %w", err)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<function=%s>\n", tc.Function.Name)
	for pair := args.Oldest(); pair != nil; pair = pair.Next() {
		value, multiline, err := renderValue(pair.Value)
		if err != nil {
			return "", fmt.Errorf("parameter %s: %w", pair.Key, err)
		}
		fmt.Fprintf(&sb, "<parameter=%s>", pair.Key)
		if multiline {
			sb.WriteString("\n")
		}
		sb.WriteString(value)
		if multiline {
			sb.WriteString("\n")
		}
		sb.WriteString("</parameter>\n")
	}
	sb.WriteString("</function>")
	return sb.String(), nil
}

func renderValue(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		return s, strings.Contains(s, "\n"), nil
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false, err
		}
		return spaced(buf.Bytes()), false, nil
	}
	switch string(raw) {
	case "true":
		return "True", false, nil
	case "false":
		return "False", false, nil
	case "null":
		return "None", false, nil
	}
	return string(raw), false, nil
}

// spaced rewrites compact JSON with a space after every separator outside
// strings and non-ASCII runes escaped as \uXXXX.
func spaced(compact []byte) string {
	var sb strings.Builder
	inString, escaped := false, false
	for _, r := range string(compact) {
		switch {
		case inString && r >= utf8.RuneSelf:
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&sb, "\\u%04x", u)
			}
			continue
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '"':
			inString = true
		}
		sb.WriteRune(r)
		if !inString && (r == ',' || r == ':') {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
