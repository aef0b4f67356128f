package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/export"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

var columnGap = regexp.MustCompile(`\t+| {2,}`)

// Sheets renders one sheet per section, in section order. Sections that
// produced nothing still get a sheet holding the placeholder table.
func (r *Result) Sheets() []export.Sheet {
	sheets := make([]export.Sheet, 0, len(r.Order))
	for _, name := range r.Order {
		sr := r.Sections[name]
		sheets = append(sheets, export.Sheet{
			Name:          name,
			Table:         sr.Table(),
			HideGridLines: sr.Config.GridLinesRemoval,
		})
	}
	return sheets
}

// Table is the section's content as a single table.
func (r *SectionResult) Table() *table.Table {
	if r.Status() == constants.JobStatusFailed {
		return table.Placeholder()
	}
	var t *table.Table
	switch r.Content.Kind {
	case ContentTable:
		t = r.Consolidated
	case ContentFields:
		rows := make([][]string, 0, len(r.Content.FieldOrder))
		for _, name := range r.Content.FieldOrder {
			rows = append(rows, []string{name, r.Content.Fields[name]})
		}
		t = table.New([]string{"Field", "Value"}, rows)
	case ContentText:
		t = textTable(r.Content.Text)
	}
	if t.Empty() {
		return table.Placeholder()
	}
	return t
}

// textTable splits lines on runs of whitespace wide enough to look like a
// column gap. The widest line decides the column count.
func textTable(text string) *table.Table {
	var rows [][]string
	width := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := columnGap.Split(strings.TrimSpace(line), -1)
		width = max(width, len(cells))
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, width)
	cols[0] = "Text"
	for i := 1; i < width; i++ {
		cols[i] = fmt.Sprintf("Column %d", i+1)
	}
	return table.New(cols, rows)
}

// Transcript lists fields and original lines per section.
func (r *Result) Transcript() []export.TranscriptSection {
	out := make([]export.TranscriptSection, 0, len(r.Order))
	for _, name := range r.Order {
		sr := r.Sections[name]
		ts := export.TranscriptSection{Name: name, Lines: sr.Lines}
		for _, f := range sr.Content.FieldOrder {
			ts.Fields = append(ts.Fields, export.Field{Name: f, Value: sr.Content.Fields[f]})
		}
		out = append(out, ts)
	}
	return out
}

// Output bundles everything the export writer needs.
func (r *Result) Output() export.JobOutput {
	return export.JobOutput{Sheets: r.Sheets(), Transcript: r.Transcript()}
}
