// Package main provides the entry point for the content service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/sciencesimplified/content-service/internal/blob"
	"github.com/sciencesimplified/content-service/internal/config"
	"github.com/sciencesimplified/content-service/internal/database"
	"github.com/sciencesimplified/content-service/internal/editorial"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/newsletter"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/pubmed"
	"github.com/sciencesimplified/content-service/internal/repository"
	httpserver "github.com/sciencesimplified/content-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("content-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Set up metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("content_service")
	}

	// Create repositories.
	subjectRepo := repository.NewPgSubjectRepository(db)
	paperRepo := repository.NewPgPaperRepository(db)
	postRepo := repository.NewPgPostRepository(db)
	subscriberRepo := repository.NewPgSubscriberRepository(db)

	// Create the literature search client.
	searchClient := pubmed.New(pubmed.Config{
		BaseURL:    cfg.PubMed.BaseURL,
		APIKey:     cfg.PubMed.APIKey,
		Timeout:    cfg.PubMed.Timeout,
		RateLimit:  cfg.PubMed.RateLimit,
		MaxResults: cfg.PubMed.MaxResults,
	}, logger, metrics)

	// Create the text-generation client.
	llmClient, err := llm.NewClient(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Strategy:    llm.OutputStrategy(cfg.LLM.OutputStrategy),
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	// Create the PDF blob store on the local filesystem.
	blobStore, err := blob.NewStore(afero.NewOsFs(), blob.Config{
		Root:     cfg.Storage.PDFDir,
		MaxBytes: cfg.Storage.MaxUploadBytes,
	}, logger)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}

	// Create the newsletter dispatch service.
	emailClient, err := newsletter.NewClient(newsletter.ClientConfig{
		APIKey:      cfg.Newsletter.APIKey,
		BaseURL:     cfg.Newsletter.BaseURL,
		FromAddress: cfg.Newsletter.FromAddress,
		Timeout:     cfg.Newsletter.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("create email client: %w", err)
	}
	digestService := newsletter.NewService(postRepo, subscriberRepo, emailClient,
		cfg.Newsletter.BatchSize, logger, metrics)

	// Create the editorial pipeline services.
	selector := editorial.NewSelector(subjectRepo, paperRepo, searchClient, llmClient, logger, metrics)
	batchSelector := editorial.NewBatchSelector(subjectRepo, paperRepo, searchClient, llmClient,
		cfg.Pipeline.BatchWeeks, logger, metrics)
	generator := editorial.NewGenerator(paperRepo, postRepo, llmClient, editorial.GeneratorConfig{
		MaxPapersPerPost: cfg.Pipeline.MaxPapersPerRun,
		Budget:           cfg.Pipeline.GenerationBudget,
	}, logger, metrics)
	publisher := editorial.NewPublisher(postRepo, logger, metrics)

	// Create the HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		SubjectRepo:    subjectRepo,
		PaperRepo:      paperRepo,
		PostRepo:       postRepo,
		SubscriberRepo: subscriberRepo,
		Selector:       selector,
		Batch:          batchSelector,
		Generator:      generator,
		Publisher:      publisher,
		Digest:         digestService,
		Blobs:          blobStore,
		Health:         db,
		Metrics:        metrics,
	}, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("content-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down content-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("content-service shutdown complete")
	return nil
}
