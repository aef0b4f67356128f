package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

const sectionColumn = "Section"

// WriteCombinedCSV flattens every sheet into one CSV over the union of their
// columns, tagging each row with its sheet name in a trailing Section column.
func WriteCombinedCSV(w io.Writer, sheets []Sheet) error {
	var columns []string
	index := make(map[string]int)
	for _, s := range sheets {
		if s.Table == nil {
			continue
		}
		for _, c := range s.Table.Columns {
			if _, ok := index[c]; !ok {
				index[c] = len(columns)
				columns = append(columns, c)
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), columns...), sectionColumn)); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, s := range sheets {
		if s.Table == nil {
			continue
		}
		for _, row := range s.Table.Rows {
			rec := make([]string, len(columns)+1)
			for i, v := range row {
				rec[index[s.Table.Columns[i]]] = v
			}
			rec[len(columns)] = s.Name
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeCSVFile(path string, sheets []Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := WriteCombinedCSV(f, sheets); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
