// Package table turns raw cell grids into clean, header-labeled tables.
package table

import (
	"strings"

	"github.com/joseph-ayodele/filings-extractor/constants"
)

// Table is a header-labeled grid. Every row has len(Columns) values and the
// first column is the key column.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New builds a table, padding or truncating rows to the column count.
func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, fit(r, len(columns)))
	}
	return t
}

// Placeholder is returned when nothing usable could be extracted.
func Placeholder() *Table {
	return &Table{
		Columns: []string{constants.KeyColumnName},
		Rows:    [][]string{{constants.NoDataExtracted}},
	}
}

func (t *Table) IsPlaceholder() bool {
	return t != nil && len(t.Columns) == 1 && len(t.Rows) == 1 && t.Rows[0][0] == constants.NoDataExtracted
}

func (t *Table) Width() int { return len(t.Columns) }

// Empty reports whether the table has no columns or no rows.
func (t *Table) Empty() bool { return t == nil || len(t.Columns) == 0 || len(t.Rows) == 0 }

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		out.Rows = append(out.Rows, append([]string(nil), r...))
	}
	return out
}

// Column returns a copy of column i.
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// KeepColumns retains the columns for which keep returns true.
func (t *Table) KeepColumns(keep func(i int) bool) {
	var idx []int
	for i := range t.Columns {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	if len(idx) == len(t.Columns) {
		return
	}
	cols := make([]string, len(idx))
	for j, i := range idx {
		cols[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		nr := make([]string, len(idx))
		for j, i := range idx {
			nr[j] = row[i]
		}
		t.Rows[r] = nr
	}
	t.Columns = cols
}

// KeepRows retains the rows for which keep returns true.
func (t *Table) KeepRows(keep func(row []string) bool) {
	out := t.Rows[:0]
	for _, r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	t.Rows = out
}

// ColumnEmpty reports whether every value in column i is blank.
func (t *Table) ColumnEmpty(i int) bool {
	for _, r := range t.Rows {
		if !blank(r[i]) {
			return false
		}
	}
	return true
}

func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func rowEmpty(row []string) bool {
	for _, v := range row {
		if !blank(v) {
			return false
		}
	}
	return true
}
