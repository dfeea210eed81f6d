/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch_test

import (
	"context"
	"path/filepath"
	"testing"

	"chainguard.dev/rubrics/agents/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStore(t *testing.T) {
	ctx := context.Background()
	s := batch.DirStore(filepath.Join(t.TempDir(), "nested"))

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = s.Read(ctx, "missing.json")
	assert.ErrorIs(t, err, batch.ErrNotFound)

	require.NoError(t, s.Write(ctx, "batch_000001.json", []byte("{}")))
	require.NoError(t, s.Write(ctx, "batch_000000.json", []byte("{}")))
	require.NoError(t, s.Write(ctx, "output_000000.jsonl", []byte("")))

	names, err = s.List(ctx, "batch_")
	require.NoError(t, err)
	assert.Equal(t, []string{"batch_000000.json", "batch_000001.json"}, names)

	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, s.Write(ctx, bad, nil), bad)
	}
}

func TestLoadAllIgnoresOtherFiles(t *testing.T) {
	ctx := context.Background()
	s := batch.DirStore(t.TempDir())
	require.NoError(t, s.Write(ctx, "batch_000002.json", []byte(`{"batch_id": "b2", "status": "completed"}`)))
	require.NoError(t, s.Write(ctx, "batch_000000.json", []byte(`{"batch_id": "b0"}`)))
	require.NoError(t, s.Write(ctx, "batch_000000_inputs.jsonl", []byte("{}\n")))
	require.NoError(t, s.Write(ctx, "batch_ids.txt", []byte("b0\nb2")))

	metas, err := batch.LoadAll(ctx, s)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "b0", metas[0].BatchID)
	assert.Equal(t, 2, metas[1].Shard)
	assert.Equal(t, "completed", metas[1].Status)

	require.NoError(t, s.Write(ctx, "batch_000003.json", []byte(`{`)))
	_, err = batch.LoadAll(ctx, s)
	assert.Error(t, err)
}
