package consolidate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/filings-extractor/internal/export"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

// AcrossSources merges same-named sheets from several workbooks into one
// combined workbook.
type AcrossSources struct {
	engine *Engine
	writer *export.WorkbookWriter
}

func NewAcrossSources(engine *Engine, writer *export.WorkbookWriter) *AcrossSources {
	return &AcrossSources{engine: engine, writer: writer}
}

// Source is one workbook and the sheets it contributes. A nil Combine takes
// every sheet; otherwise only the sheets it names are merged.
type Source struct {
	Path    string
	Combine map[string]bool
}

// wants reports whether the sanitized, lower-cased sheet key is selected.
func (s Source) wants(key string) bool {
	if s.Combine == nil {
		return true
	}
	for name, ok := range s.Combine {
		if ok && strings.ToLower(export.SanitizeSheetName(name)) == key {
			return true
		}
	}
	return false
}

// Consolidate reads sources in order and groups their selected sheets by
// sanitized name. It returns the names of the sheets written to outPath.
func (a *AcrossSources) Consolidate(ctx context.Context, sources []Source, outPath string) ([]string, error) {
	start := time.Now()
	var order []string
	groups := make(map[string][]*table.Table)
	display := make(map[string]string)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sheets, err := export.ReadWorkbook(src.Path)
		if err != nil {
			return nil, err
		}
		for _, s := range sheets {
			name := export.SanitizeSheetName(s.Name)
			k := strings.ToLower(name)
			if !src.wants(k) {
				continue
			}
			if _, ok := groups[k]; !ok {
				order = append(order, k)
				display[k] = name
			}
			groups[k] = append(groups[k], s.Table)
			a.engine.logger.Info("consolidate.sheet.loaded", "sheet", name, "file", src.Path, "rows", len(s.Table.Rows))
		}
	}

	var out []export.Sheet
	var names []string
	for _, k := range order {
		merged := a.engine.MergeTables(groups[k])
		if merged.IsPlaceholder() {
			a.engine.logger.Warn("consolidate.sheet.empty", "sheet", display[k])
			continue
		}
		out = append(out, export.Sheet{Name: display[k], Table: merged})
		names = append(names, display[k])
	}

	if err := a.writer.WriteFile(outPath, out); err != nil {
		return nil, fmt.Errorf("write combined workbook: %w", err)
	}
	a.engine.logger.Info("consolidate.sources.ok",
		"files", len(sources),
		"sheets", len(out),
		"output", outPath,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return names, nil
}
