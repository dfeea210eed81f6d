/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/rubrics/agents/annotator"
	"chainguard.dev/rubrics/agents/annotator/claudeannotator"
	"chainguard.dev/rubrics/agents/annotator/googleannotator"
	"chainguard.dev/rubrics/agents/annotator/openaiannotator"
	"chainguard.dev/rubrics/agents/batch"
	"chainguard.dev/rubrics/agents/batch/claudebatch"
	"chainguard.dev/rubrics/agents/batch/gcsstore"
	"chainguard.dev/rubrics/agents/batch/openaibatch"
	"cloud.google.com/go/compute/metadata"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

func openStore(ctx context.Context, output string) (batch.Store, error) {
	if strings.HasPrefix(output, "gs://") {
		return gcsstore.Open(ctx, output)
	}
	return batch.DirStore(output), nil
}

// gcp fills in the project and region from GCE metadata when unset.
func gcp(ctx context.Context, cfg config) (project, region string) {
	project, region = cfg.GCPProjectID, cfg.GCPRegion
	if !metadata.OnGCE() {
		return project, region
	}
	log := clog.FromContext(ctx)
	if project == "" {
		if p, err := metadata.ProjectIDWithContext(ctx); err == nil {
			project = p
			log.With("project_id", project).Info("Detected Google Cloud project")
		}
	}
	if region == "" {
		if zone, err := metadata.ZoneWithContext(ctx); err == nil && strings.Contains(zone, "-") {
			region = zone[:strings.LastIndex(zone, "-")]
			log.With("region", region).Info("Detected Google Cloud region")
		}
	}
	return project, region
}

func openaiClient(cfg config) openai.Client {
	// Retries are handled by the annotators and the batch driver.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return openai.NewClient(opts...)
}

// anthropicClient uses Vertex AI when a GCP project is known and the API key
// from the environment otherwise.
func anthropicClient(ctx context.Context, cfg config) anthropic.Client {
	if project, region := gcp(ctx, cfg); project != "" && region != "" {
		return anthropic.NewClient(vertex.WithGoogleAuth(ctx, region, project))
	}
	return anthropic.NewClient()
}

func batchProvider(ctx context.Context, cfg config) (batch.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaibatch.New(openaiClient(cfg)), nil
	case "anthropic":
		var opts []claudebatch.Option
		if cfg.Model != "" {
			opts = append(opts, claudebatch.WithModel(cfg.Model))
		}
		return claudebatch.New(anthropicClient(ctx, cfg), opts...)
	default:
		return nil, fmt.Errorf("unknown batch provider %q (want openai or anthropic)", cfg.Provider)
	}
}

// liveAnnotator picks the provider from the model name.
func liveAnnotator(ctx context.Context, cfg config) (annotator.Interface, error) {
	switch {
	case strings.HasPrefix(cfg.Model, "claude-"):
		return claudeannotator.New(anthropicClient(ctx, cfg), claudeannotator.WithModel(cfg.Model))

	case strings.HasPrefix(cfg.Model, "gemini-"):
		project, region := gcp(ctx, cfg)
		cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
		if project != "" && region != "" {
			cc = &genai.ClientConfig{Project: project, Location: region, Backend: genai.BackendVertexAI}
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google AI client: %w", err)
		}
		return googleannotator.New(client, googleannotator.WithModel(cfg.Model))

	default:
		var opts []openaiannotator.Option
		if cfg.Model != "" {
			opts = append(opts, openaiannotator.WithModel(cfg.Model))
		}
		return openaiannotator.New(openaiClient(cfg), opts...)
	}
}
