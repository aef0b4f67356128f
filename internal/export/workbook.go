// Package export writes extraction results as styled workbooks, CSV and text.
package export

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

const (
	headerFill    = "4F81BD"
	maxColWidth   = 50
	noDataMessage = "No data available"
)

// Sheet is one table rendered onto its own worksheet.
type Sheet struct {
	Name          string
	Table         *table.Table
	HideGridLines bool
}

// WorkbookWriter renders sheets with a bold, filled header row, wrapped
// cells and content-sized columns.
type WorkbookWriter struct {
	logger *slog.Logger
}

func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Build renders sheets into a new workbook. With no sheets the workbook holds
// a single placeholder sheet.
func (w *WorkbookWriter) Build(sheets []Sheet) (*excelize.File, error) {
	start := time.Now()
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("body style: %w", err)
	}

	if len(sheets) == 0 {
		sheets = []Sheet{{Name: "Sheet1", Table: table.New([]string{noDataMessage}, nil)}}
	}

	used := make(map[string]bool)
	for i, s := range sheets {
		name := uniqueSheetName(s.Name, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("rename sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("new sheet %q: %w", name, err)
		}
		if err := w.fillSheet(f, name, s, headerStyle, bodyStyle); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	w.logger.Debug("export.workbook.built", "sheets", len(sheets), "elapsed_ms", time.Since(start).Milliseconds())
	return f, nil
}

func (w *WorkbookWriter) fillSheet(f *excelize.File, name string, s Sheet, headerStyle, bodyStyle int) error {
	t := s.Table
	if t == nil || t.Width() == 0 {
		t = table.New([]string{noDataMessage}, nil)
	}

	widths := make([]int, t.Width())
	write := func(rowNum int, values []string) error {
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
		return f.SetSheetRow(name, cell, &row)
	}

	if err := write(1, t.Columns); err != nil {
		return fmt.Errorf("write header %q: %w", name, err)
	}
	for r, row := range t.Rows {
		if err := write(r+2, row); err != nil {
			return fmt.Errorf("write row %d of %q: %w", r+2, name, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(t.Width(), 1)
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header %q: %w", name, err)
	}
	if len(t.Rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(t.Width(), len(t.Rows)+1)
		if err := f.SetCellStyle(name, "A2", end, bodyStyle); err != nil {
			return fmt.Errorf("style body %q: %w", name, err)
		}
	}

	for i, n := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := n + 2
		if width > maxColWidth {
			width = maxColWidth
		}
		if err := f.SetColWidth(name, col, col, float64(width)); err != nil {
			return fmt.Errorf("column width %q: %w", name, err)
		}
	}

	if s.HideGridLines {
		show := false
		if err := f.SetSheetView(name, 0, &excelize.ViewOptions{ShowGridLines: &show}); err != nil {
			return fmt.Errorf("hide gridlines %q: %w", name, err)
		}
	}
	return nil
}

// WriteFile renders sheets and saves them at path.
func (w *WorkbookWriter) WriteFile(path string, sheets []Sheet) error {
	start := time.Now()
	f, err := w.Build(sheets)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("export.xlsx.close_failed", "path", path, "error", err)
		}
	}()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	w.logger.Info("export.xlsx.ok",
		"path", path,
		"sheets", len(sheets),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// WriteBytes renders sheets into an in-memory workbook.
func (w *WorkbookWriter) WriteBytes(sheets []Sheet) ([]byte, error) {
	f, err := w.Build(sheets)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
