/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prediction defines the closed set of answer shapes a rubric
// feature can ask a model for.
//
// Each shape is a Type that knows two things: how to flatten itself into
// JSON-Schema properties for a tool definition, and how to rebuild a typed
// Value from the flat argument map the model sends back. Both directions use
// the same key naming, so the schema and the decoder cannot drift:
//
//	Binary          {field}_detected (boolean), {field}_rationale (string)
//	Text            {field}_text (string)
//	Classification  {field} (string, enum of labels), {field}_rationale (string)
//
// The primary value of every shape (detected, text, label) is required and
// its absence is reported as a *MissingFieldError. A missing rationale
// decodes as the empty string.
//
// # Usage
//
//	sentiment := prediction.NewClassification("Positive", "Negative", "Neutral")
//	props := sentiment.Properties("overall_sentiment", "User sentiment.", "Why.")
//	v, err := sentiment.Decode("overall_sentiment", args)
//	if err != nil {
//		// *MissingFieldError, *InvalidValueError or *InvalidLabelError
//	}
//	label := v.(*prediction.ClassificationPrediction).Label
package prediction
