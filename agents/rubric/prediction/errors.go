/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prediction

import (
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/rubrics/agents/rubric/params"
)

// MissingFieldError reports that the primary key of a field was absent.
type MissingFieldError struct {
	Field string
	Key   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("feature %s: missing required key %q", e.Field, e.Key)
}

// InvalidValueError reports that a key held a value of the wrong JSON type.
type InvalidValueError struct {
	Field string
	Key   string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("feature %s: invalid value for %q: %v", e.Field, e.Key, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// InvalidLabelError reports a classification label outside the declared set.
type InvalidLabelError struct {
	Field   string
	Label   string
	Allowed []string
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("feature %s: label %q is not one of [%s]", e.Field, e.Label, strings.Join(e.Allowed, ", "))
}

// fieldError converts a params extraction error into the matching typed error.
func fieldError(field, key string, err error) error {
	if errors.Is(err, params.ErrMissing) {
		return &MissingFieldError{Field: field, Key: key}
	}
	return &InvalidValueError{Field: field, Key: key, Err: err}
}
