package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable draws a rounded table of string cells. Columns whose header is
// named in numeric are right-aligned, which covers the attempt and asset
// counts podflow prints.
func renderTable(headers []string, rows [][]string, numeric ...string) string {
	if len(headers) == 0 {
		return ""
	}
	rightAligned := make(map[string]bool, len(numeric))
	for _, name := range numeric {
		rightAligned[name] = true
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, name := range headers {
		header[i] = name
		align := text.AlignLeft
		if rightAligned[name] {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			} else {
				cells[i] = ""
			}
		}
		tw.AppendRow(cells)
	}
	return tw.Render()
}

// renderDestinations draws the per-partition tally shown after a generate or
// upload run.
func renderDestinations(rows [][]string) string {
	return renderTable([]string{"Destination", "Assets"}, rows, "Assets")
}
