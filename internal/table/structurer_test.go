package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
)

func header(r, c int, content string) docintel.Cell {
	return docintel.Cell{Kind: docintel.CellKindColumnHeader, RowIndex: r, ColumnIndex: c, Content: content}
}

func cell(r, c int, content string) docintel.Cell {
	return docintel.Cell{RowIndex: r, ColumnIndex: c, Content: content}
}

// grid builds a table without header flags from literal rows.
func grid(rows ...[]string) docintel.Table {
	g := docintel.Table{RowCount: len(rows)}
	for r, row := range rows {
		if len(row) > g.ColumnCount {
			g.ColumnCount = len(row)
		}
		for c, v := range row {
			g.Cells = append(g.Cells, cell(r, c, v))
		}
	}
	return g
}

func TestStructureFinancialTable(t *testing.T) {
	g := docintel.Table{RowCount: 4, ColumnCount: 3, Cells: []docintel.Cell{
		header(0, 0, "Particulars"), header(0, 1, "2023"), header(0, 2, "2022"),
		cell(1, 0, "Revenue"), cell(1, 1, "1,200"), cell(1, 2, "(3,140)"),
		cell(2, 0, "Tax expense"), cell(2, 1, "100"), cell(2, 2, "90"),
		cell(3, 0, "Net profit"), cell(3, 1, "1100"), cell(3, 2, "-3,230"),
	}}

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "2023", "2022"}, got.Columns)
	assert.Equal(t, [][]string{
		{"Revenue", "1,200", "-3,140"},
		{"Tax expense", "100", "90"},
		{"Net profit", "1,100", "-3,230"},
	}, got.Rows)
}

func TestStructureDropsIndexKeyColumn(t *testing.T) {
	g := grid(
		[]string{"", "Description", "2023"},
		[]string{"1", "Office rent", "500"},
		[]string{"2", "Salaries", "700"},
		[]string{"3", "Utilities", "80"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "2023"}, got.Columns)
	assert.Equal(t, [][]string{{"Office rent", "500"}, {"Salaries", "700"}, {"Utilities", "80"}}, got.Rows)
}

func TestStructureKeepsKeyColumnWithFinanceKeywords(t *testing.T) {
	g := grid(
		[]string{"Particulars", "2023"},
		[]string{"i", "10"},
		[]string{"ii", "20"},
		[]string{"iii", "30"},
		[]string{"Revenue", "40"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	require.Equal(t, []string{"Particulars", "2023"}, got.Columns)
	require.Len(t, got.Rows, 4)
	assert.Equal(t, "Revenue", got.Rows[3][0])
	assert.Equal(t, "i", got.Rows[0][0])
}

func TestStructureDropsKeyColumnBelowFinanceThreshold(t *testing.T) {
	g := grid(
		[]string{"Particulars", "Item", "2023"},
		[]string{"i", "Rent", "10"},
		[]string{"ii", "Wages", "20"},
		[]string{"iii", "Power", "30"},
		[]string{"iv", "Water", "40"},
		[]string{"Revenue", "Sales", "50"},
	)

	opts := DefaultOptions()
	opts.FinanceKeywordThreshold = 0.5
	got := NewStructurer(opts, nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "2023"}, got.Columns)
	assert.Equal(t, "Rent", got.Rows[0][0])
}

func TestStructureSpannedHeaders(t *testing.T) {
	g := docintel.Table{RowCount: 3, ColumnCount: 3, Cells: []docintel.Cell{
		{Kind: docintel.CellKindColumnHeader, RowIndex: 0, ColumnIndex: 1, ColumnSpan: 2, Content: "Year ended"},
		header(1, 0, "Particulars"), header(1, 1, "2023"), header(1, 2, "2022"),
		cell(2, 0, "Total assets"),
		{RowIndex: 2, ColumnIndex: 1, ColumnSpan: 2, Content: "5000"},
	}}

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "2023", "Year ended 2022"}, got.Columns)
	assert.Equal(t, [][]string{{"Total assets", "5,000", "5,000"}}, got.Rows)
}

func TestStructurePromotesYearRow(t *testing.T) {
	g := grid(
		[]string{"", "", ""},
		[]string{"", "2023", "2022"},
		[]string{"Revenue", "10", "20"},
		[]string{"Expenses", "5", "6"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "2023", "2022"}, got.Columns)
	assert.Equal(t, [][]string{{"Revenue", "10", "20"}, {"Expenses", "5", "6"}}, got.Rows)
}

func TestStructureDropsRepeatedHeaderWithoutYears(t *testing.T) {
	g := grid(
		[]string{"Particulars", "Amount"},
		[]string{"Particulars", "Amount (Rs)"},
		[]string{"Revenue", "10"},
		[]string{"Expenses", "5"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "Amount"}, got.Columns)
	assert.Equal(t, [][]string{{"Revenue", "10"}, {"Expenses", "5"}}, got.Rows)
}

func TestStructureWithoutYearsAlwaysLosesFirstRow(t *testing.T) {
	g := grid(
		[]string{"Particulars", "Amount"},
		[]string{"Revenue", "10"},
		[]string{"Expenses", "5"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, [][]string{{"Expenses", "5"}}, got.Rows)
}

func TestStructureYearColumnPruning(t *testing.T) {
	g := grid(
		[]string{"Particulars", "Note", "2022", "2023"},
		[]string{"Revenue", "4", "10", "20"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)
	assert.Equal(t, []string{"Particulars", "2022", "2023"}, got.Columns)

	opts := DefaultOptions()
	opts.DropLatestYearColumn = true
	got = NewStructurer(opts, nil).Structure(g)
	assert.Equal(t, []string{"Particulars", "2022"}, got.Columns)
	assert.Equal(t, [][]string{{"Revenue", "10"}}, got.Rows)
}

func TestStructureDropsNoise(t *testing.T) {
	g := grid(
		[]string{"Particulars", "2023", "2023"},
		[]string{"Particulars", "2023", "2023"},
		[]string{"Revenue", "1", "1"},
		[]string{"", "", ""},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, []string{"Particulars", "2023"}, got.Columns)
	assert.Equal(t, [][]string{{"Revenue", "1"}}, got.Rows)
}

func TestStructureStripsRomanPrefix(t *testing.T) {
	g := grid(
		[]string{"Particulars", "2023"},
		[]string{"IV. Revenue from operations", "10"},
		[]string{"(ii) Other income", "2"},
	)

	got := NewStructurer(DefaultOptions(), nil).Structure(g)

	assert.Equal(t, "Revenue from operations", got.Rows[0][0])
	assert.Equal(t, "Other income", got.Rows[1][0])
}

func TestStructureDegradesToPlaceholder(t *testing.T) {
	s := NewStructurer(DefaultOptions(), nil)

	assert.True(t, s.Structure(docintel.Table{}).IsPlaceholder())
	assert.True(t, s.Structure(grid([]string{"Particulars", "2023"})).IsPlaceholder())
	assert.True(t, s.Structure(docintel.Table{RowCount: 2, ColumnCount: 2, Cells: []docintel.Cell{
		{RowIndex: -1, ColumnIndex: 0, Content: "bad"},
	}}).IsPlaceholder())
}
