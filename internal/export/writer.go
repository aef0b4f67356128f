package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// JobOutput is everything produced for one job.
type JobOutput struct {
	Sheets     []Sheet
	Transcript []TranscriptSection
}

// Artifacts are the local paths written for a job.
type Artifacts struct {
	Workbook   string
	CSV        string
	Transcript string
}

func (a *Artifacts) Paths() []string {
	return []string{a.Workbook, a.CSV, a.Transcript}
}

// Writer places job artifacts in one directory.
type Writer struct {
	dir      string
	workbook *WorkbookWriter
	logger   *slog.Logger
}

func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, workbook: NewWorkbookWriter(logger), logger: logger}
}

// WriteJob writes "<base>_sections_processed.xlsx", "<base>_combined.csv" and
// "<base>_extracted.txt". If any of them fails, the files already written are
// removed.
func (w *Writer) WriteJob(base string, out JobOutput) (*Artifacts, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base = BaseName(base)
	a := &Artifacts{
		Workbook:   filepath.Join(w.dir, base+"_sections_processed.xlsx"),
		CSV:        filepath.Join(w.dir, base+"_combined.csv"),
		Transcript: filepath.Join(w.dir, base+"_extracted.txt"),
	}

	var written []string
	fail := func(err error) (*Artifacts, error) {
		w.Cleanup(written...)
		w.logger.Error("export.job.failed", "base", base, "error", err)
		return nil, err
	}

	if err := w.workbook.WriteFile(a.Workbook, out.Sheets); err != nil {
		written = append(written, a.Workbook)
		return fail(err)
	}
	written = append(written, a.Workbook)

	if err := writeCSVFile(a.CSV, out.Sheets); err != nil {
		written = append(written, a.CSV)
		return fail(err)
	}
	written = append(written, a.CSV)

	if err := writeTranscriptFile(a.Transcript, out.Transcript); err != nil {
		written = append(written, a.Transcript)
		return fail(err)
	}

	w.logger.Info("export.job.ok", "base", base, "sheets", len(out.Sheets), "dir", w.dir)
	return a, nil
}

// Cleanup removes paths, ignoring ones that do not exist.
func (w *Writer) Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("export.cleanup.failed", "path", p, "error", err)
		}
	}
}

// BaseName strips directories and the extension from a document name.
func BaseName(name string) string {
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
