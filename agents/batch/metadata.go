/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Metadata is persisted for every submitted shard as batch_{n:06d}.json.
type Metadata struct {
	BatchID      string `json:"batch_id"`
	InputFileID  string `json:"input_file_id"`
	Endpoint     string `json:"endpoint"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"created_at"`
	RequestCount int    `json:"request_count"`

	Shard        int            `json:"shard"`
	Provider     string         `json:"provider,omitempty"`
	OutputFileID string         `json:"output_file_id,omitempty"`
	ErrorFileID  string         `json:"error_file_id,omitempty"`
	Counts       *RequestCounts `json:"request_counts,omitempty"`
}

var metadataName = regexp.MustCompile(`^batch_(\d{6})\.json$`)

// MetadataName is the store name of shard n's metadata.
func MetadataName(n int) string { return fmt.Sprintf("batch_%06d.json", n) }

// InputName is the store name of shard n's input lines.
func InputName(n int) string { return fmt.Sprintf("batch_%06d_inputs.jsonl", n) }

// OutputName is the store name of shard n's downloaded output.
func OutputName(n int) string { return fmt.Sprintf("output_%06d.jsonl", n) }

// ErrorsName is the store name of shard n's downloaded error lines.
func ErrorsName(n int) string { return fmt.Sprintf("errors_%06d.jsonl", n) }

// Job returns the provider job the metadata last observed.
func (m *Metadata) Job() *Job {
	j := &Job{
		ID:           m.BatchID,
		Status:       m.Status,
		OutputFileID: m.OutputFileID,
		ErrorFileID:  m.ErrorFileID,
	}
	if m.Counts != nil {
		j.Counts = *m.Counts
	}
	return j
}

func (m *Metadata) update(j *Job) {
	m.Status = j.Status
	if j.OutputFileID != "" {
		m.OutputFileID = j.OutputFileID
	}
	if j.ErrorFileID != "" {
		m.ErrorFileID = j.ErrorFileID
	}
	counts := j.Counts
	m.Counts = &counts
}

func saveMetadata(ctx context.Context, s Store, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := s.Write(ctx, MetadataName(m.Shard), data); err != nil {
		return fmt.Errorf("writing metadata for batch %s: %w", m.BatchID, err)
	}
	return nil
}

// LoadAll reads every metadata file in the store, ordered by shard.
func LoadAll(ctx context.Context, s Store) ([]*Metadata, error) {
	names, err := s.List(ctx, "batch_")
	if err != nil {
		return nil, fmt.Errorf("listing metadata: %w", err)
	}

	var out []*Metadata
	for _, name := range names {
		m := metadataName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		data, err := s.Read(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		// The file name is authoritative for the shard number.
		meta.Shard, _ = strconv.Atoi(m[1])
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shard < out[j].Shard })
	return out, nil
}

func nextShard(ctx context.Context, s Store) (int, error) {
	existing, err := LoadAll(ctx, s)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return existing[len(existing)-1].Shard + 1, nil
}
