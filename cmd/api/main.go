package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/facestream/internal/api"
	"github.com/saturnino-fabrica-de-software/facestream/internal/audit"
	"github.com/saturnino-fabrica-de-software/facestream/internal/cache"
	"github.com/saturnino-fabrica-de-software/facestream/internal/classifier"
	"github.com/saturnino-fabrica-de-software/facestream/internal/config"
	"github.com/saturnino-fabrica-de-software/facestream/internal/database"
	"github.com/saturnino-fabrica-de-software/facestream/internal/face"
	"github.com/saturnino-fabrica-de-software/facestream/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facestream/internal/metrics"
	"github.com/saturnino-fabrica-de-software/facestream/internal/projection"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/repository"
	"github.com/saturnino-fabrica-de-software/facestream/internal/session"
	"github.com/saturnino-fabrica-de-software/facestream/internal/storage"
	"github.com/saturnino-fabrica-de-software/facestream/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting facestream",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.ProviderType),
		slog.String("registry", cfg.RegistryBackend),
		slog.String("model_store", cfg.ModelStore),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		dbName, err := database.DatabaseName(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := database.Apply(cfg.DatabaseURL, dbName, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		pool, err = database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
	}

	auditLogger := audit.NewSlogLogger(logger)
	m := metrics.NewManager()

	providers, err := face.NewProviders(ctx, cfg, auditLogger)
	if err != nil {
		return fmt.Errorf("failed to create providers: %w", err)
	}

	var modelStore classifier.Store = classifier.NewFileStore(cfg.ModelPath)
	if cfg.ModelStore == config.BackendPostgres {
		modelStore = cache.NewModelStore(cache.NewPGCache(pool), cache.DefaultModelKey)
	}

	classifierOpts := []classifier.Option{classifier.WithEmbeddingDim(cfg.EmbeddingDim)}
	if cfg.AugmentUnknown {
		classifierOpts = append(classifierOpts, classifier.WithUnknownPool(classifier.NewUnknownPool(cfg.UnknownPoolPath)))
	}
	trainer := classifier.NewService(modelStore, logger, classifierOpts...)

	var reg registry.Registry
	switch cfg.RegistryBackend {
	case config.BackendPostgres:
		reg = repository.NewRegistryRepository(pool)
	default:
		csvReg, err := registry.NewCSV(cfg.UserTablePath, cfg.FeedbackPath)
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}
		reg = csvReg
	}

	store := storage.NewFaceStore(cfg.TrainingDir, cfg.CaptureDir, cfg.DiscardDir)

	sessionOpts := []session.Option{
		session.WithMetrics(m),
		session.WithAuditLogger(auditLogger),
	}
	if pool != nil {
		sessionOpts = append(sessionOpts, session.WithEmbeddingMemo(repository.NewSampleRepository(pool)))
	}
	sessions := session.NewRouter(session.Dependencies{
		Detector:   providers.Detector,
		Embedder:   providers.Embedder,
		Aligner:    imaging.NewAligner(cfg.ImgDim),
		Classifier: trainer,
		Projector:  projection.NewProjector(projection.DefaultTSNEConfig()),
		Registry:   reg,
		Store:      store,
	}, logger, sessionOpts...)

	hub := ws.NewHub(logger, ws.WithObserver(m))
	go hub.Run(ctx)

	aggregator := metrics.NewAggregator(m, func(context.Context) (int, error) {
		images, err := store.ScanTraining()
		return len(images), err
	}, logger, time.Minute)
	go aggregator.Start(ctx)

	deps := &api.Dependencies{
		Hub:              hub,
		Sessions:         sessions,
		Metrics:          m.Handler(),
		OutboundBuffer:   cfg.OutboundBuffer,
		SessionRateLimit: cfg.SessionRateLimit,
	}
	if pool != nil {
		deps.DB = pool
	}
	router := api.NewRouter(logger, deps)
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr), slog.Bool("tls", cfg.TLSEnabled()))
		var err error
		if cfg.TLSEnabled() {
			err = router.ListenTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = router.Listen(addr)
		}
		if err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")
	return nil
}
