package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/internal/async"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/consolidate"
	"github.com/joseph-ayodele/filings-extractor/internal/core"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
	"github.com/joseph-ayodele/filings-extractor/internal/export"
	"github.com/joseph-ayodele/filings-extractor/internal/ingest"
	"github.com/joseph-ayodele/filings-extractor/internal/jobspec"
	"github.com/joseph-ayodele/filings-extractor/internal/pdfdoc"
	"github.com/joseph-ayodele/filings-extractor/internal/progress"
	repo "github.com/joseph-ayodele/filings-extractor/internal/repository"
	"github.com/joseph-ayodele/filings-extractor/internal/services/extraction"
	"github.com/joseph-ayodele/filings-extractor/internal/storage"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// runner submits by running the job on the spot, so a batch finishes when
// the directory walk does.
type runner struct {
	svc      *extraction.Service
	outcomes []*extraction.Outcome
	combine  []map[string]bool
}

func (r *runner) Submit(ctx context.Context, _ async.Queue, req *jobspec.Request) (uuid.UUID, error) {
	out, err := r.svc.Run(ctx, req, nil)
	if err != nil {
		return uuid.Nil, err
	}
	r.outcomes = append(r.outcomes, out)
	r.combine = append(r.combine, req.CombineSet())
	return out.JobID, nil
}

func main() {
	var (
		inmem      = flag.Bool("inmem", false, "use an in-memory SQLite usage ledger")
		dir        = flag.String("dir", "", "directory of job manifests (required); documents sit next to them")
		out        = flag.String("out", "", "combined XLSX path (optional, defaults to parent directory)")
		outDir     = flag.String("out-dir", "", "directory for per-document artifacts (defaults to OUTPUT_DIR)")
		combineAll = flag.Bool("combine-all", false, "combine every sheet across documents, not only sections marked combine")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "combined.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if cfg.DocIntel.Endpoint == "" {
		printError("Error: DOCINTEL_ENDPOINT env var is required\n")
		os.Exit(2)
	}

	ledger, err := repo.OpenLedger(ctx, cfg.Database, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize usage ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Cleanup()

	client, err := docintel.New(cfg.DocIntel.Endpoint,
		docintel.WithToken(cfg.DocIntel.APIKey),
		docintel.WithAPIVersion(cfg.DocIntel.APIVersion),
		docintel.WithPollInterval(cfg.DocIntel.PollInterval),
		docintel.WithClient(&http.Client{Timeout: cfg.DocIntel.Timeout}),
		docintel.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build document intelligence client", "error", err)
		os.Exit(2)
	}
	analyzer := docintel.NewLimited(docintel.NewRateLimiter(cfg.DocIntel.RequestsPerSecond), client)

	pdf := pdfdoc.New()
	engine := consolidate.NewEngine(logger)
	orchestrator := core.NewOrchestrator(analyzer,
		table.NewStructurer(table.Options{
			FinanceKeywordThreshold: cfg.Extraction.FinanceKeywordThreshold,
			DropLatestYearColumn:    cfg.Extraction.DropLatestYearColumn,
		}, logger),
		engine, logger,
		core.WithWorkers(cfg.Extraction.Workers),
		core.WithChunkSize(cfg.Extraction.ChunkSize),
		core.WithChunkTimeout(cfg.Extraction.ChunkTimeout),
		core.WithSlicer(pdf),
	)

	store := storage.NewLocalStore(cfg.Storage.Root, logger)
	service := extraction.NewService(store, pdf, ledger.Ledger, orchestrator,
		export.NewWriter(cfg.Output.Dir, logger), progress.NewRegistry(logger), logger,
		extraction.WithMaxPagesWithoutConfig(cfg.Extraction.MaxPagesWithoutConfig),
		extraction.WithPageAllowance(cfg.Extraction.PageAllowance),
		extraction.WithFilterTables(cfg.Extraction.FilterTables),
		extraction.WithKeepLocal(true),
	)

	r := &runner{svc: service}
	ingestor := ingest.NewFSIngestor(r, nil, store, logger)

	logger.Info("starting batch", "dir", *dir)
	results, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to walk manifest directory", "error", err)
		os.Exit(1)
	}
	for _, res := range results {
		if res.Err != "" {
			logger.Error("manifest failed", "manifest", res.Manifest, "error", res.Err)
		}
	}
	logger.Info("batch extraction complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"submitted", stats.Submitted,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed)

	var sources []consolidate.Source
	partial := 0
	for i, o := range r.outcomes {
		if len(o.FailedSections) > 0 {
			partial++
		}
		switch {
		case *combineAll:
			sources = append(sources, consolidate.Source{Path: o.Artifacts.Workbook})
		case len(r.combine[i]) > 0:
			sources = append(sources, consolidate.Source{Path: o.Artifacts.Workbook, Combine: r.combine[i]})
		}
	}

	var sheets []string
	if len(sources) > 0 {
		across := consolidate.NewAcrossSources(engine, export.NewWorkbookWriter(logger))
		sheets, err = across.Consolidate(ctx, sources, *out)
		if err != nil {
			logger.Error("failed to consolidate workbooks", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents extracted: %d\n", len(r.outcomes))
	fmt.Printf("- With failed sections: %d\n", partial)
	fmt.Printf("- Failures: %d\n", stats.Failed)
	if len(sheets) > 0 {
		fmt.Printf("- Combined sheets: %d -> %s\n", len(sheets), *out)
	}
}
