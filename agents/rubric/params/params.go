/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package params

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrMissing is returned when a required key is absent or null.
	ErrMissing = errors.New("parameter is required")
	// ErrWrongType is returned when a key holds a value of an unexpected JSON type.
	ErrWrongType = errors.New("parameter has wrong type")
)

// Extract extracts a required parameter from args with type safety.
// A null value counts as missing.
func Extract[T any](args map[string]any, name string) (T, error) {
	var zero T

	value, exists := args[name]
	if !exists || value == nil {
		return zero, fmt.Errorf("%s: %w", name, ErrMissing)
	}
	return convert[T](name, value)
}

// ExtractOptional extracts an optional parameter with a default value.
// Returns the default if the parameter doesn't exist or is null, or an error
// if type conversion fails.
func ExtractOptional[T any](args map[string]any, name string, defaultValue T) (T, error) {
	value, exists := args[name]
	if !exists || value == nil {
		return defaultValue, nil
	}
	return convert[T](name, value)
}

func convert[T any](name string, value any) (T, error) {
	if v, ok := value.(T); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%s must be of type %T, got %T: %w", name, zero, value, ErrWrongType)
}

// WithPrefix returns the sorted keys of args that start with prefix.
func WithPrefix(args map[string]any, prefix string) []string {
	var out []string
	for k := range args {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
