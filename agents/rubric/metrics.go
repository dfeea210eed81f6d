/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var featureDecodes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rubric_feature_decodes_total",
		Help: "Features decoded from tool calls, by outcome",
	},
	[]string{"tool", "outcome"},
)
