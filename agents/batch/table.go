/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteStatusTable renders metas as a markdown table.
func WriteStatusTable(w io.Writer, metas []*Metadata) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Behavior: tw.Behavior{TrimSpace: tw.Off},
		}),
		tablewriter.WithHeader([]string{"Shard", "Batch ID", "Status", "Requests", "Completed", "Failed", "Created"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	for _, m := range metas {
		completed, failed := "-", "-"
		if m.Counts != nil {
			completed = strconv.FormatInt(m.Counts.Completed, 10)
			failed = strconv.FormatInt(m.Counts.Failed, 10)
		}
		if err := table.Append([]string{
			fmt.Sprintf("%06d", m.Shard),
			m.BatchID,
			m.Status,
			strconv.Itoa(m.RequestCount),
			completed,
			failed,
			time.Unix(m.CreatedAt, 0).UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
