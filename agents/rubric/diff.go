/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"fmt"
	"strings"

	"chainguard.dev/rubrics/agents/rubric/prediction"
)

// Changes lists the differences between two revisions of a rubric.
type Changes struct {
	// Tool is set when the tool name, description or required policy changed.
	Tool bool

	Added       []string
	Removed     []string
	Retyped     []string
	Redescribed []string
}

// Empty reports whether the two revisions compile to the same schema.
func (c Changes) Empty() bool {
	return !c.Tool && len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Retyped) == 0 && len(c.Redescribed) == 0
}

func (c Changes) String() string {
	if c.Empty() {
		return "no changes"
	}
	var parts []string
	if c.Tool {
		parts = append(parts, "tool metadata changed")
	}
	for _, s := range []struct {
		label string
		names []string
	}{
		{"added", c.Added},
		{"removed", c.Removed},
		{"retyped", c.Retyped},
		{"redescribed", c.Redescribed},
	} {
		if len(s.names) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", s.label, strings.Join(s.names, ", ")))
		}
	}
	return strings.Join(parts, "; ")
}

// Diff compares two revisions feature by feature. Added features follow the
// order of next; all other lists follow the order of prev.
func Diff(prev, next *Rubric) Changes {
	var c Changes
	c.Tool = prev.toolName != next.toolName ||
		prev.toolDescription != next.toolDescription ||
		prev.rationaleDescription != next.rationaleDescription ||
		prev.requiredAll != next.requiredAll

	for _, f := range prev.features {
		nf, ok := next.Feature(f.Name)
		switch {
		case !ok:
			c.Removed = append(c.Removed, f.Name)
		case !prediction.Equal(f.Type, nf.Type):
			c.Retyped = append(c.Retyped, f.Name)
		case f.Description != nf.Description:
			c.Redescribed = append(c.Redescribed, f.Name)
		}
	}
	for _, f := range next.features {
		if _, ok := prev.Feature(f.Name); !ok {
			c.Added = append(c.Added, f.Name)
		}
	}
	return c
}
