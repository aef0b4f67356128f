package table

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
)

// Options tunes the structuring heuristics.
type Options struct {
	// FinanceKeywordThreshold is the key-column finance ratio at or above
	// which the key column is always kept.
	FinanceKeywordThreshold float64
	// DropLatestYearColumn removes the column carrying the most recent year.
	DropLatestYearColumn bool
}

func DefaultOptions() Options {
	return Options{FinanceKeywordThreshold: 0.25}
}

// Structurer converts raw service grids into Tables. It never fails: grids
// that yield nothing usable become the placeholder table.
type Structurer struct {
	opts   Options
	logger *slog.Logger
}

func NewStructurer(opts Options, logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Structurer{opts: opts, logger: logger}
}

func (s *Structurer) Structure(grid docintel.Table) *Table {
	rows, headerRows := s.rebuildRows(grid)
	if len(rows) == 0 {
		s.logger.Warn("structure.grid.empty", "rows", grid.RowCount, "columns", grid.ColumnCount, "cells", len(grid.Cells))
		return Placeholder()
	}

	t := s.nameColumns(rows, headerRows)
	if t.Width() == 0 || len(t.Rows) == 0 {
		s.logger.Warn("structure.grid.no_data", "rows", len(rows), "header_rows", len(headerRows))
		return Placeholder()
	}

	s.applyKeyColumnHeuristic(t)
	for _, row := range t.Rows {
		row[0] = stripRomanPrefix(row[0])
	}
	s.pruneByYear(t)
	normalizeHeaders(t)
	dropNoise(t)
	formatNumbers(t)

	if t.Empty() {
		s.logger.Warn("structure.table.emptied")
		return Placeholder()
	}
	return t
}

// rebuildRows lays cells out into full-width rows. Header rows keep a spanned
// label on the right-most covered column only; data rows repeat it.
func (s *Structurer) rebuildRows(grid docintel.Table) ([][]string, map[int]bool) {
	width, height := grid.ColumnCount, grid.RowCount
	for _, c := range grid.Cells {
		if c.RowIndex < 0 || c.ColumnIndex < 0 {
			continue
		}
		if end := c.ColumnIndex + c.Span(); end > width {
			width = end
		}
		if c.RowIndex+1 > height {
			height = c.RowIndex + 1
		}
	}
	if width == 0 || height == 0 {
		return nil, nil
	}

	headerRows := make(map[int]bool)
	for _, c := range grid.Cells {
		if c.IsHeader() && c.RowIndex >= 0 {
			headerRows[c.RowIndex] = true
		}
	}

	rows := make([][]string, height)
	for i := range rows {
		rows[i] = make([]string, width)
	}
	skipped := 0
	for _, c := range grid.Cells {
		if c.RowIndex < 0 || c.ColumnIndex < 0 {
			skipped++
			continue
		}
		content := strings.TrimSpace(c.Content)
		last := c.ColumnIndex + c.Span() - 1
		if headerRows[c.RowIndex] {
			rows[c.RowIndex][last] = content
			continue
		}
		for col := c.ColumnIndex; col <= last; col++ {
			rows[c.RowIndex][col] = content
		}
	}
	if skipped > 0 {
		s.logger.Warn("structure.grid.bad_cells", "skipped", skipped)
	}
	return rows, headerRows
}

// nameColumns builds the header from flagged header rows, or from row 0 when
// the grid flags none.
func (s *Structurer) nameColumns(rows [][]string, headerRows map[int]bool) *Table {
	if len(headerRows) == 0 {
		return New(rows[0], rows[1:])
	}
	idx := make([]int, 0, len(headerRows))
	for r := range headerRows {
		idx = append(idx, r)
	}
	sort.Ints(idx)

	width := len(rows[0])
	cols := make([]string, width)
	for c := 0; c < width; c++ {
		var parts []string
		for _, r := range idx {
			v := rows[r][c]
			if v != "" && (len(parts) == 0 || parts[len(parts)-1] != v) {
				parts = append(parts, v)
			}
		}
		cols[c] = strings.Join(parts, " ")
	}
	var data [][]string
	for r, row := range rows {
		if !headerRows[r] {
			data = append(data, row)
		}
	}
	return New(cols, data)
}

func (s *Structurer) applyKeyColumnHeuristic(t *Table) {
	if t.Width() < 2 {
		return
	}
	st := measureKeyColumn(t)
	keep, reason := keepKeyColumn(st, s.opts.FinanceKeywordThreshold)
	if keep {
		return
	}
	oldHeader := t.Columns[0]
	t.KeepColumns(func(i int) bool { return i != 0 })
	if blank(t.Columns[0]) {
		t.Columns[0] = oldHeader
	}
	s.logger.Debug("structure.key_column.dropped", "reason", reason, "header", oldHeader, "values", st.values)
}

// pruneByYear drops the first data row when no header carries a year, since
// it usually repeats the header. A first row holding year labels is promoted
// into the header instead. Non-year value columns, and optionally the latest
// year column, are then dropped.
func (s *Structurer) pruneByYear(t *Table) {
	if rowHasYear(t.Columns[1:]) {
		s.pruneYearColumns(t)
		return
	}
	if len(t.Rows) == 0 {
		return
	}
	first := t.Rows[0]
	t.Rows = t.Rows[1:]
	if !rowHasYear(first[1:]) {
		s.logger.Debug("structure.first_row.dropped", "row", first)
		return
	}
	for i := 1; i < len(first); i++ {
		if first[i] != "" {
			t.Columns[i] = first[i]
		}
	}
	s.pruneYearColumns(t)
}

func (s *Structurer) pruneYearColumns(t *Table) {

	latest, latestIdx := 0, -1
	if s.opts.DropLatestYearColumn {
		for i, c := range t.Columns {
			if i == 0 {
				continue
			}
			if y, ok := YearOf(c); ok && y > latest {
				latest, latestIdx = y, i
			}
		}
	}
	t.KeepColumns(func(i int) bool {
		if i == 0 {
			return true
		}
		return hasYear(t.Columns[i]) && i != latestIdx
	})
}

func rowHasYear(row []string) bool {
	for _, v := range row {
		if hasYear(v) {
			return true
		}
	}
	return false
}

func normalizeHeaders(t *Table) {
	if t.Width() == 0 {
		return
	}
	for i := range t.Columns {
		t.Columns[i] = strings.Join(strings.Fields(t.Columns[i]), " ")
	}
	t.Columns[0] = constants.KeyColumnName
	t.KeepColumns(func(i int) bool { return !blank(t.Columns[i]) })
}

func dropNoise(t *Table) {
	seen := make(map[string]bool, t.Width())
	dup := make(map[int]bool)
	for i, c := range t.Columns {
		k := strings.ToLower(c)
		if seen[k] {
			dup[i] = true
		}
		seen[k] = true
	}
	t.KeepColumns(func(i int) bool { return !dup[i] })

	if len(t.Rows) > 0 && sameValues(t.Rows[0], t.Columns) {
		t.Rows = t.Rows[1:]
	}
	t.KeepRows(func(r []string) bool { return !rowEmpty(r) })
	t.KeepColumns(func(i int) bool { return i == 0 || !t.ColumnEmpty(i) })
}

func sameValues(row, cols []string) bool {
	for i := 1; i < len(cols); i++ {
		if !strings.EqualFold(strings.TrimSpace(row[i]), cols[i]) {
			return false
		}
	}
	return len(cols) > 1
}

// formatNumbers renders numeric value cells for display. The key column holds
// labels and is left alone.
func formatNumbers(t *Table) {
	for _, row := range t.Rows {
		for i := 1; i < len(row); i++ {
			row[i] = NormalizeNumber(row[i])
		}
	}
}
