package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

// ReadWorkbook loads every sheet of an xlsx file, using each sheet's first
// row as its header. Cells past the last header cell get "Column N" names.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", name, path, err)
		}
		if len(rows) == 0 {
			continue
		}
		out = append(out, Sheet{Name: name, Table: table.New(padHeader(rows), rows[1:])})
	}
	return out, nil
}

// padHeader widens the header to the widest row. GetRows trims trailing
// empty cells, so a header can come back shorter than the data under it.
func padHeader(rows [][]string) []string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	header := append([]string(nil), rows[0]...)
	for i := len(header); i < width; i++ {
		header = append(header, fmt.Sprintf("Column %d", i+1))
	}
	return header
}
