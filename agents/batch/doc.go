/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package batch drives offline annotation through provider batch APIs.
//
// A Driver turns rubric requests into NDJSON lines of the form
//
//	{"custom_id":"req_{name}_{i:08d}","method":"POST","url":"/v1/chat/completions","body":{...}}
//
// splits them into shards bounded by request count and byte size, creates
// one provider batch per shard and records a metadata file per shard in a
// Store. Status, Poll and Download later pick up from those metadata files:
//
//	d, err := batch.New(openaibatch.New(client), batch.DirStore("./out"))
//	metas, err := d.Submit(ctx, "run1", requests)
//	...
//	status, err := d.Poll(ctx, metas[0], time.Hour)
//	results, err := d.Download(ctx, metas[0], r)
//
// Output lines that fail to parse or decode are logged with their custom_id
// and skipped. Only successfully decoded lines become Results.
package batch
