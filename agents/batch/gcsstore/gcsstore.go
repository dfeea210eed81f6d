/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gcsstore keeps batch metadata and artifacts in a Google Cloud
// Storage bucket under a common prefix.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"chainguard.dev/rubrics/agents/batch"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Store is a batch.Store over gs://bucket/prefix/.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ batch.Store = (*Store)(nil)

// New returns a Store writing under gs://bucket/prefix/ with client.
func New(client *storage.Client, bucket, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// Open parses a gs://bucket/prefix URL and creates its own client.
func Open(ctx context.Context, url string, opts ...option.ClientOption) (*Store, error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return nil, fmt.Errorf("%q is not a gs:// URL", url)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return New(client, bucket, prefix)
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + name)
}

// Write uploads data to name.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	w := s.object(name).NewWriter(ctx)
	w.ContentType = contentType(name)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing gs://%s/%s%s: %w", s.bucket, s.prefix, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s%s: %w", s.bucket, s.prefix, name, err)
	}
	return nil
}

// Read downloads name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := s.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", name, batch.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s%s: %w", s.bucket, s.prefix, name, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// List returns the names directly under the store prefix that start with
// prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix:    s.prefix + prefix,
		Delimiter: "/",
	})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", s.bucket, s.prefix, err)
		}
		if attrs.Name == "" {
			// Synthetic directory entry.
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, s.prefix))
	}
	sort.Strings(names)
	return names, nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/jsonl"
	default:
		return "application/octet-stream"
	}
}
