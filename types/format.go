package types

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// MarkdownTable renders a titled markdown table section, or "" when there are
// no rows.
func MarkdownTable(title string, header []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# " + title + ":\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	table.Header(hdr...)
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		_ = table.Append(cells...)
	}
	_ = table.Render()
	return buf.String()
}

// Section renders a titled markdown section, or "" when the body is empty.
func Section(title, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("# %s:\n%s", title, body)
}

// JoinSections joins non-empty sections with blank lines.
func JoinSections(sections ...string) string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}
