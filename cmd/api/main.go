package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/balance-projection/internal/api/handlers"
	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/balance"
	"github.com/dvloznov/balance-projection/internal/config"
	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/export"
	infraBQ "github.com/dvloznov/balance-projection/internal/infra/bigquery"
	"github.com/dvloznov/balance-projection/internal/infra/sqlite"
	"github.com/dvloznov/balance-projection/internal/jobs/inmemory"
	"github.com/dvloznov/balance-projection/internal/logger"
	"github.com/dvloznov/balance-projection/internal/projection"
	"github.com/dvloznov/balance-projection/internal/recalc"
	"github.com/dvloznov/balance-projection/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}

	// Parse command-line flags
	port := flag.String("port", cfg.Server.Port, "HTTP server port (or set BALANCE_SERVER_PORT)")
	flag.Parse()

	// Initialize logger
	log, err := logger.Configure(os.Stdout, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to configure logger")
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to flush traces")
		}
	}()

	// Initialize storage
	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer store.Close()

	var tracker coverage.Tracker = coverage.NewSQLTracker(store, cfg.Coverage.GapDays)
	if cfg.Coverage.Source == config.CoverageBigQuery {
		bq, err := infraBQ.New(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.Coverage.GapDays)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery coverage tracker")
		}
		defer bq.Close()
		tracker = bq
	}

	initial, _ := cfg.InitialBalance() // checked by config.Load
	calc := balance.NewCalculator(store, store, tracker, balance.Config{
		MaxRangeDays:   cfg.Projection.MaxRangeDays,
		InitialBalance: initial,
	}, log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore(cfg.Jobs.MaxLog)
	trigger := recalc.NewTrigger(calc, store, jobStore, recalc.Config{
		WindowMonths: cfg.Projection.WindowMonths,
		ChunkDays:    cfg.Projection.ChunkDays,
		Workers:      cfg.Jobs.Workers,
	}, log)
	jobQueue := inmemory.NewQueue(cfg.Jobs.Buffer, cfg.Jobs.Workers, jobStore)

	// Start worker in background to process rebuild jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, trigger.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	svc := projection.NewService(projection.Deps{
		Store:     store,
		Calc:      calc,
		Trigger:   trigger,
		Tracker:   tracker,
		Jobs:      jobStore,
		Publisher: jobQueue,
		Log:       log,
	})

	var objects export.ObjectStore
	if cfg.Export.Bucket == "" {
		log.Warn().Msg("No export bucket configured - timeline exports will be disabled")
	} else {
		gcs, err := export.NewGCSStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		objects = gcs
	}
	exporter := export.NewExporter(svc, objects, cfg.Export.Bucket, log)

	if cfg.Server.Token == "" {
		log.Warn().Msg("No server token configured - API requests are not authenticated")
	}

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(cfg.Server.Token)(handlers.NewRouter(svc, exporter, log)),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Str("database", cfg.Database.Path).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight rebuilds
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
