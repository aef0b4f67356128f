package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/internal/consolidate"
	"github.com/joseph-ayodele/filings-extractor/internal/export"
)

type sheetList []string

func (s *sheetList) String() string { return strings.Join(*s, ",") }

func (s *sheetList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var sheets sheetList
	out := flag.String("out", "combined.xlsx", "output XLSX path")
	flag.Var(&sheets, "sheet", "sheet to combine (repeatable); default is every sheet")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: consolidate [-out combined.xlsx] [-sheet NAME]... a.xlsx b.xlsx ...")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var combine map[string]bool
	if len(sheets) > 0 {
		combine = make(map[string]bool, len(sheets))
		for _, s := range sheets {
			combine[s] = true
		}
	}
	sources := make([]consolidate.Source, len(paths))
	for i, p := range paths {
		sources[i] = consolidate.Source{Path: p, Combine: combine}
	}

	across := consolidate.NewAcrossSources(consolidate.NewEngine(logger), export.NewWorkbookWriter(logger))
	written, err := across.Consolidate(context.Background(), sources, *out)
	if err != nil {
		logger.Error("consolidation failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d sheet(s) to %s\n", len(written), *out)
}
