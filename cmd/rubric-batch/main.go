/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command rubric-batch annotates transcripts or issue reports with a rubric,
// either live through a worker pool or offline through provider batch APIs.
//
// Usage:
//
//	rubric-batch submit    # shard RUBRIC_INPUT into batches under RUBRIC_OUTPUT
//	rubric-batch status    # print the status table of every batch
//	rubric-batch poll      # wait for batches to finish
//	rubric-batch download  # decode completed batches into annotations
//	rubric-batch annotate  # annotate RUBRIC_INPUT live
//
// All configuration comes from the environment; see config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainguard.dev/rubrics/agents/metrics"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel/attribute"
)

type config struct {
	// Provider selects the batch API: openai or anthropic. Live annotation
	// picks its provider from the model name instead.
	Provider string `env:"RUBRIC_PROVIDER,default=openai"`
	Model    string `env:"RUBRIC_MODEL"`

	// Rubric is a built-in rubric name, or auto to pick one per input line;
	// RubricFile, if set, is a YAML rubric definition used instead.
	Rubric     string `env:"RUBRIC_NAME,default=auto"`
	RubricFile string `env:"RUBRIC_FILE"`

	Input  string `env:"RUBRIC_INPUT"`
	Output string `env:"RUBRIC_OUTPUT,required"` // local directory or gs://bucket/prefix
	Name   string `env:"RUBRIC_RUN_NAME,default=run"`

	MaxRequests  int           `env:"RUBRIC_MAX_REQUESTS,default=50000"`
	MaxBytes     int           `env:"RUBRIC_MAX_BYTES,default=209715200"`
	PollInterval time.Duration `env:"RUBRIC_POLL_INTERVAL,default=30s"`
	PollTimeout  time.Duration `env:"RUBRIC_POLL_TIMEOUT,default=24h"`

	Workers           int `env:"RUBRIC_WORKERS,default=4"`
	RequestsPerMinute int `env:"RUBRIC_REQUESTS_PER_MINUTE,default=60"`

	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	// GCPProjectID and GCPRegion select Vertex AI for Claude and Gemini.
	// They default to the values detected from GCE metadata.
	GCPProjectID string `env:"GCP_PROJECT_ID"`
	GCPRegion    string `env:"GCP_REGION"`

	// MetricsPort, if set, serves Prometheus metrics while the command runs.
	MetricsPort int `env:"METRICS_PORT"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "failed to process config: %v", err)
	}
	if cfg.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.MetricsPort)
	}

	if len(os.Args) != 2 {
		clog.FatalContextf(ctx, "usage: %s submit|status|poll|download|annotate", os.Args[0])
	}
	cmd := os.Args[1]
	ctx = commandContext(ctx, cmd, cfg)

	var err error
	switch cmd {
	case "submit":
		err = submit(ctx, cfg)
	case "status":
		err = status(ctx, cfg)
	case "poll":
		err = poll(ctx, cfg)
	case "download":
		err = download(ctx, cfg)
	case "annotate":
		err = annotate(ctx, cfg)
	default:
		clog.FatalContextf(ctx, "unknown command %q", cmd)
	}
	if err != nil {
		clog.FatalContextf(ctx, "%s failed: %v", cmd, err)
	}
}

// commandContext tags the logs and annotation metrics of a command with the
// command and run names.
func commandContext(ctx context.Context, cmd string, cfg config) context.Context {
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("command", cmd).With("run", cfg.Name))
	return metrics.WithAttributes(ctx, attribute.String("command", cmd), attribute.String("run", cfg.Name))
}

func serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FromContext(ctx).Warnf("Metrics server stopped: %v", err)
	}
}
