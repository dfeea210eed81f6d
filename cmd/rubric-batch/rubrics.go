/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"os"

	"chainguard.dev/rubrics/agents/rubric"
	"chainguard.dev/rubrics/agents/rubric/library"
)

// autoRubric picks the built-in rubric per input line.
const autoRubric = "auto"

// rubrics chooses the rubric each input line is annotated with and decodes
// the answers. A fixed rubric serves every line; in auto mode transcripts
// get the trajectory variant that fits them and issue texts get solvability.
type rubrics struct {
	fixed   *rubric.Rubric
	decoder rubric.Decoder
}

func loadRubrics(cfg config) (*rubrics, error) {
	if cfg.RubricFile != "" {
		data, err := os.ReadFile(cfg.RubricFile)
		if err != nil {
			return nil, err
		}
		r, err := rubric.Parse(data)
		if err != nil {
			return nil, err
		}
		return &rubrics{fixed: r, decoder: r}, nil
	}
	if cfg.Rubric == "" || cfg.Rubric == autoRubric {
		set, err := library.Auto()
		if err != nil {
			return nil, err
		}
		return &rubrics{decoder: set}, nil
	}
	r, err := library.Load(cfg.Rubric)
	if err != nil {
		return nil, err
	}
	return &rubrics{fixed: r, decoder: r}, nil
}

func (rs *rubrics) request(ctx context.Context, line *inputLine) (*rubric.Request, error) {
	if line.Text != "" {
		r := rs.fixed
		if r == nil {
			var err error
			if r, err = library.Solvability(); err != nil {
				return nil, err
			}
		}
		return r.TextRequest(line.Text), nil
	}

	payload := line.payload()
	r := rs.fixed
	if r == nil {
		var err error
		if r, err = library.ForTranscript(payload); err != nil {
			return nil, err
		}
	}
	return r.AnnotationRequest(ctx, payload)
}
