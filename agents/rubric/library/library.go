/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package library holds the built-in rubrics as embedded YAML definitions.
package library

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"chainguard.dev/rubrics/agents/rubric"
	"chainguard.dev/rubrics/agents/transcript"
)

//go:embed rubrics/*.yaml
var definitions embed.FS

const (
	// TrajectoryName annotates the last agent turn of a conversation.
	TrajectoryName = "trajectory"
	// UserFollowUpName holds the features added when the user replied after
	// the last agent turn.
	UserFollowUpName = "user_followup"
	// SolvabilityName annotates a standalone issue report.
	SolvabilityName = "solvability"
)

// Names lists the embedded definitions.
func Names() []string {
	entries, err := definitions.ReadDir("rubrics")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(names)
	return names
}

// Definition returns the parsed definition with the given name.
func Definition(name string) (*rubric.Definition, error) {
	data, err := definitions.ReadFile(path.Join("rubrics", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown rubric %q: %w", name, err)
	}
	return rubric.ParseDefinition(data)
}

// Load builds the rubric with the given name.
func Load(name string) (*rubric.Rubric, error) {
	def, err := Definition(name)
	if err != nil {
		return nil, err
	}
	cfg, err := def.Config()
	if err != nil {
		return nil, fmt.Errorf("rubric %s: %w", name, err)
	}
	return rubric.New(cfg)
}

var (
	trajectory = sync.OnceValues(func() (*rubric.Rubric, error) {
		return Load(TrajectoryName)
	})

	// The follow-up variant asks every trajectory question plus the
	// follow-up ones, under the follow-up prompts.
	trajectoryWithUser = sync.OnceValues(func() (*rubric.Rubric, error) {
		base, err := Definition(TrajectoryName)
		if err != nil {
			return nil, err
		}
		followUp, err := Definition(UserFollowUpName)
		if err != nil {
			return nil, err
		}
		merged := *followUp
		merged.Features = slices.Concat(base.Features, followUp.Features)
		cfg, err := merged.Config()
		if err != nil {
			return nil, err
		}
		return rubric.New(cfg)
	})

	solvability = sync.OnceValues(func() (*rubric.Rubric, error) {
		return Load(SolvabilityName)
	})

	auto = sync.OnceValues(func() (*rubric.Set, error) {
		var rubrics []*rubric.Rubric
		for _, load := range []func() (*rubric.Rubric, error){trajectory, trajectoryWithUser, solvability} {
			r, err := load()
			if err != nil {
				return nil, err
			}
			rubrics = append(rubrics, r)
		}
		return rubric.NewSet(rubrics...)
	})
)

// Trajectory returns the rubric for conversations that end with an agent turn.
func Trajectory() (*rubric.Rubric, error) { return trajectory() }

// TrajectoryWithUser returns the rubric for conversations where the user
// replied after the last agent turn.
func TrajectoryWithUser() (*rubric.Rubric, error) { return trajectoryWithUser() }

// Solvability returns the issue solvability rubric. Use it with
// (*rubric.Rubric).TextRequest.
func Solvability() (*rubric.Rubric, error) { return solvability() }

// ForTranscript picks the trajectory variant that fits payload.
func ForTranscript(payload transcript.Payload) (*rubric.Rubric, error) {
	if transcript.HasUserFollowUp(payload) {
		return TrajectoryWithUser()
	}
	return Trajectory()
}

// Auto returns the set of built-in rubrics that ForTranscript and
// Solvability choose from, for decoding outputs of a run that picked its
// rubric per item.
func Auto() (*rubric.Set, error) { return auto() }
