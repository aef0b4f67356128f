package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/filings-extractor/internal/async"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/consolidate"
	"github.com/joseph-ayodele/filings-extractor/internal/core"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
	"github.com/joseph-ayodele/filings-extractor/internal/export"
	"github.com/joseph-ayodele/filings-extractor/internal/ingest"
	"github.com/joseph-ayodele/filings-extractor/internal/pdfdoc"
	"github.com/joseph-ayodele/filings-extractor/internal/progress"
	repo "github.com/joseph-ayodele/filings-extractor/internal/repository"
	svc "github.com/joseph-ayodele/filings-extractor/internal/server"
	"github.com/joseph-ayodele/filings-extractor/internal/services/extraction"
	"github.com/joseph-ayodele/filings-extractor/internal/storage"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file; env vars override it")
	flag.Parse()

	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfigFile(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if cfg.DocIntel.Endpoint == "" {
		logger.Error("DOCINTEL_ENDPOINT env var is required")
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.HasPrefix(addr, ":") && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := repo.OpenLedger(ctx, cfg.Database, false, logger)
	if err != nil {
		logger.Error("failed to open usage ledger", "error", err)
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
	structurer := table.NewStructurer(table.Options{
		FinanceKeywordThreshold: cfg.Extraction.FinanceKeywordThreshold,
		DropLatestYearColumn:    cfg.Extraction.DropLatestYearColumn,
	}, logger)
	orchestrator := core.NewOrchestrator(analyzer, structurer, consolidate.NewEngine(logger), logger,
		core.WithWorkers(cfg.Extraction.Workers),
		core.WithChunkSize(cfg.Extraction.ChunkSize),
		core.WithChunkTimeout(cfg.Extraction.ChunkTimeout),
		core.WithSlicer(pdf),
	)

	store := storage.NewLocalStore(cfg.Storage.Root, logger)
	extractionService := extraction.NewService(store, pdf, ledger.Ledger, orchestrator,
		export.NewWriter(cfg.Output.Dir, logger), progress.NewRegistry(logger), logger,
		extraction.WithMaxPagesWithoutConfig(cfg.Extraction.MaxPagesWithoutConfig),
		extraction.WithPageAllowance(cfg.Extraction.PageAllowance),
		extraction.WithFilterTables(cfg.Extraction.FilterTables),
	)

	queue := async.NewProcessorQueue(extractionService, logger,
		async.WithWorkers(cfg.Server.JobWorkers),
		async.WithQueueSize(cfg.Server.QueueSize),
		async.WithProcessTimeout(30*time.Minute),
	)

	if cfg.Storage.WatchDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Storage.WatchDir},
			InitialScan: true,
			Debounce:    cfg.Storage.WatchDebounce,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			logger.Error("failed to start manifest watcher", "dir", cfg.Storage.WatchDir, "error", err)
			os.Exit(1)
		}
		go ingest.NewFSIngestor(extractionService, queue, store, logger).Consume(ctx, events)
		go func() {
			for range errs {
			}
		}()
		logger.Info("watching for job manifests", "dir", cfg.Storage.WatchDir)
	}

	// gRPC server
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.RequestIDInterceptor(logger)))
	svc.RegisterExtractionServer(grpcServer, svc.NewExtractionService(extractionService, queue, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("filings-extractor listening", "addr", addr, "ledger", ledger.Backend)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}
