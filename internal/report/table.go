package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bagtoad/tagcluster/internal/materialize"
	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Align is a column alignment for RenderTable.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// RenderTable renders rows under headers with rounded borders.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// Print writes a console summary of one subfolder: its clusters and the file
// operations performed, or planned in a dry run.
func Print(w io.Writer, s Summary, actions []materialize.Action, dryRun bool) {
	fmt.Fprintln(w)
	if dryRun {
		fmt.Fprintf(w, "=== Dry Run Summary: %s ===\n", s.Subfolder)
	} else {
		fmt.Fprintf(w, "=== Summary: %s ===\n", s.Subfolder)
	}
	fmt.Fprintf(w, "Images clustered:    %d\n", s.Total)
	fmt.Fprintf(w, "Named clusters:      %d\n", len(s.Clusters))

	if len(s.Clusters) > 0 {
		rows := make([][]string, 0, len(s.Clusters))
		for _, c := range s.Clusters {
			rows = append(rows, []string{string(c.Axis), c.Name, strconv.Itoa(c.Count), tags.Join(c.Prompt)})
		}
		fmt.Fprintln(w, RenderTable(
			[]string{"Axis", "Name", "Images", "Prompt"},
			rows,
			[]Align{AlignLeft, AlignLeft, AlignRight, AlignLeft},
		))
	}

	if len(actions) == 0 {
		fmt.Fprintln(w, "No files to materialize.")
		return
	}
	counts := make(map[materialize.Op]int)
	for _, a := range actions {
		if a.Err == nil {
			counts[a.Op]++
		}
	}
	verb := ""
	if dryRun {
		verb = "Would "
	}
	fmt.Fprintf(w, "%slink: %d  %scopy: %d  %smove: %d  skipped: %d\n",
		verb, counts[materialize.OpLink], verb, counts[materialize.OpCopy], verb, counts[materialize.OpMove],
		materialize.Failed(actions))
}
