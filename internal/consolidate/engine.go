// Package consolidate merges many partial tables into one column-complete
// table per section.
package consolidate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Consolidate merges each section's tables.
func (e *Engine) Consolidate(sections map[string][]*table.Table) map[string]*table.Table {
	out := make(map[string]*table.Table, len(sections))
	for name, tables := range sections {
		out[name] = e.MergeTables(tables)
		e.logger.Debug("consolidate.section.ok", "section", name, "tables", len(tables), "rows", len(out[name].Rows))
	}
	return out
}

// MergeTables folds tables into one keyed by the first column. Values for a
// key already present only fill empty cells; a conflicting value lands in a
// suffixed column ("2023_1") instead of replacing the first one.
func (e *Engine) MergeTables(tables []*table.Table) *table.Table {
	var inputs []*table.Table
	for _, t := range tables {
		if t.Empty() || t.IsPlaceholder() {
			continue
		}
		inputs = append(inputs, t)
	}
	if len(inputs) == 0 {
		return table.Placeholder()
	}

	m := newMerger(inputs[0].Columns[0])
	for i, t := range inputs {
		if !strings.EqualFold(t.Columns[0], m.columns[0]) {
			e.logger.Info("consolidate.key_column.renamed", "table", i, "from", t.Columns[0], "to", m.columns[0])
		}
		m.add(t)
	}

	out := m.result()
	out.KeepColumns(func(i int) bool { return i == 0 || !out.ColumnEmpty(i) })
	table.SortYearColumns(out)
	return out
}

type merger struct {
	columns []string
	colIdx  map[string]int
	rows    [][]string
	rowIdx  map[string]int
}

func newMerger(key string) *merger {
	return &merger{
		columns: []string{key},
		colIdx:  map[string]int{},
		rowIdx:  map[string]int{},
	}
}

func (m *merger) add(t *table.Table) {
	for i := 1; i < t.Width(); i++ {
		m.column(t.Columns[i])
	}

	seen := make(map[string]int)
	for _, row := range t.Rows {
		label := strings.TrimSpace(row[0])
		key := SanitizeKey(label)
		if key != "" {
			if n := seen[key]; n > 0 {
				label = fmt.Sprintf("%s (Uniq: %d)", label, n)
			}
			seen[key]++
			key = SanitizeKey(label)
		}

		idx, ok := m.rowIdx[key]
		if key == "" || !ok {
			idx = m.appendRow(label)
			if key != "" {
				m.rowIdx[key] = idx
			}
		}
		for i := 1; i < len(row); i++ {
			// insertions shift indexes, so resolve by name per cell
			m.set(idx, m.colIdx[strings.ToLower(t.Columns[i])], row[i])
		}
	}
}

// column returns the output index for name, adding it when new.
func (m *merger) column(name string) int {
	if i, ok := m.colIdx[strings.ToLower(name)]; ok {
		return i
	}
	return m.insertColumn(name, len(m.columns))
}

func (m *merger) insertColumn(name string, at int) int {
	m.columns = append(m.columns, "")
	copy(m.columns[at+1:], m.columns[at:])
	m.columns[at] = name
	for r, row := range m.rows {
		row = append(row, "")
		copy(row[at+1:], row[at:])
		row[at] = ""
		m.rows[r] = row
	}
	for k, i := range m.colIdx {
		if i >= at {
			m.colIdx[k] = i + 1
		}
	}
	m.colIdx[strings.ToLower(name)] = at
	return at
}

func (m *merger) appendRow(label string) int {
	row := make([]string, len(m.columns))
	row[0] = label
	m.rows = append(m.rows, row)
	return len(m.rows) - 1
}

// set writes v into the cell when it is empty. A different non-empty value
// goes to the first suffixed sibling column that is free or already equal.
func (m *merger) set(row, col int, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	cur := m.rows[row][col]
	if cur == "" {
		m.rows[row][col] = v
		return
	}
	if cur == v {
		return
	}
	base := m.columns[col]
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s_%d", base, n)
		idx, ok := m.colIdx[strings.ToLower(name)]
		if !ok {
			idx = m.insertColumn(name, m.lastSibling(base)+1)
		}
		switch m.rows[row][idx] {
		case "":
			m.rows[row][idx] = v
			return
		case v:
			return
		}
	}
}

func (m *merger) lastSibling(base string) int {
	last := m.colIdx[strings.ToLower(base)]
	for n := 1; ; n++ {
		i, ok := m.colIdx[strings.ToLower(fmt.Sprintf("%s_%d", base, n))]
		if !ok {
			return last
		}
		last = i
	}
}

func (m *merger) result() *table.Table {
	return table.New(m.columns, m.rows)
}

// SanitizeKey is the comparison form of a row label.
func SanitizeKey(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, " :.-")
}
