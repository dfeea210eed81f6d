/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shardsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rubric_batch_shards_submitted_total",
			Help: "Provider batches created",
		},
	)
	requestsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rubric_batch_requests_submitted_total",
			Help: "Request lines submitted across all batches",
		},
	)
	outputRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_batch_output_records_total",
			Help: "Batch output lines processed, by outcome",
		},
		[]string{"outcome"},
	)
)
