/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"maps"

	"chainguard.dev/rubrics/agents/rubric/prediction"
)

// Feature is a named slot the model is asked to fill.
type Feature struct {
	Name        string
	Description string
	Type        prediction.Type
}

// Keys returns the tool-schema property keys this feature owns.
func (f Feature) Keys() []string {
	if f.Type == nil {
		return nil
	}
	return f.Type.Keys(f.Name)
}

// FeatureData is one decoded answer.
type FeatureData struct {
	Feature    Feature
	Prediction prediction.Value
}

// Flatten merges the tool arguments of every decoded feature into one map,
// the same flat shape the model produced.
func Flatten(data []FeatureData) map[string]any {
	out := make(map[string]any)
	for _, d := range data {
		maps.Copy(out, d.Prediction.ToolArgs(d.Feature.Name))
	}
	return out
}

// Detected returns the names of binary features that were detected.
func Detected(data []FeatureData) []string {
	var out []string
	for _, d := range data {
		if b, ok := d.Prediction.(*prediction.BinaryPrediction); ok && b.Detected {
			out = append(out, d.Feature.Name)
		}
	}
	return out
}

// DetectionRate is the fraction of binary features that were detected.
// It returns 0 when there are no binary features.
func DetectionRate(data []FeatureData) float64 {
	var total, detected int
	for _, d := range data {
		if b, ok := d.Prediction.(*prediction.BinaryPrediction); ok {
			total++
			if b.Detected {
				detected++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(detected) / float64(total)
}
