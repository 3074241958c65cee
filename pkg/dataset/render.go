package dataset

import "github.com/jedib0t/go-pretty/v6/table"

// RenderText draws d as a plain text table.
func RenderText(d *Dataset) string {
	t := tableOf(d)
	t.SetStyle(table.StyleLight)
	return t.Render()
}

// RenderMarkdown draws d as a GitHub-flavoured markdown table.
func RenderMarkdown(d *Dataset) string {
	return tableOf(d).RenderMarkdown()
}

func tableOf(d *Dataset) table.Writer {
	t := table.NewWriter()

	names := d.ColumnNames()
	header := make(table.Row, len(names))
	for i, n := range names {
		header[i] = n
	}
	t.AppendHeader(header)

	for i := 0; i < d.Len(); i++ {
		vals := d.Values(i)
		row := make(table.Row, len(vals))
		for c, v := range vals {
			row[c] = FormatValue(v)
		}
		t.AppendRow(row)
	}
	return t
}

// RenderCSV writes d as comma separated values with a header line.
func RenderCSV(d *Dataset) string {
	return tableOf(d).RenderCSV()
}
