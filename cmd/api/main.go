package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shopify-improvement-core/internal/application"
	"shopify-improvement-core/internal/application/webhook_handlers"
	"shopify-improvement-core/internal/config"
	apiinfra "shopify-improvement-core/internal/infrastructure/api"
	"shopify-improvement-core/internal/infrastructure/encryption"
	"shopify-improvement-core/internal/infrastructure/enhancement"
	"shopify-improvement-core/internal/infrastructure/metrics"
	"shopify-improvement-core/internal/infrastructure/pubsub"
	"shopify-improvement-core/internal/infrastructure/repository"
	shopifyinfra "shopify-improvement-core/internal/infrastructure/shopify"
	"shopify-improvement-core/internal/infrastructure/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger = newLogger(cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	medium, err := openMedium(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}

	workflowMetrics := metrics.NewWorkflowMetrics(prometheus.DefaultRegisterer)
	db := storage.NewDB(medium, logger).WithObserver(workflowMetrics)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	encryptionService, err := encryption.NewService(cfg.App.MasterSecret())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	if encryptionService.UsingDefaultKey() {
		logger.Warn().Msg("ENCRYPTION_KEY is not set; secrets are encrypted with the default key")
	}

	credentialRepo := repository.NewCredentialRepository(db, encryptionService, logger)
	workflowRepo := repository.NewWorkflowRepository(db, encryptionService, logger)

	shopifyClient := shopifyinfra.NewClient(cfg.Shopify.APIKey, cfg.Shopify.APISecret, logger)
	catalog := shopifyinfra.NewCatalogService(credentialRepo, shopifyClient, logger)
	verifier := shopifyinfra.NewWebhookVerifier(cfg.Shopify.APIKey, cfg.Shopify.APISecret)
	if cfg.Shopify.APISecret == "" {
		logger.Warn().Msg("SHOPIFY_API_SECRET is not set; all webhook deliveries will be rejected")
	}

	events := pubsub.NewImprovementPubSub(logger)

	improvementService := application.NewImprovementService(application.ImprovementServiceConfig{
		Workflow:           workflowRepo,
		Credentials:        credentialRepo,
		Enhancers:          enhancement.NewFactory(cfg.Improvement.EnhancerMode, cfg.Improvement.EnhancementTimeout, logger),
		CatalogReader:      catalog,
		CatalogUpdater:     catalog,
		Events:             events,
		Observer:           workflowMetrics,
		EnhancementTimeout: cfg.Improvement.EnhancementTimeout,
		CatalogTimeout:     cfg.Improvement.CatalogTimeout,
		Logger:             logger,
	})
	settingsService := application.NewSettingsService(workflowRepo, credentialRepo, cfg.Improvement.APIURL, logger)
	installationService := application.NewInstallationService(credentialRepo, logger)

	dispatcher := webhook_handlers.NewDispatcher(workflowRepo, logger,
		webhook_handlers.NewAppUninstalledHandler(logger, installationService),
		webhook_handlers.NewProductHandler(logger, workflowRepo),
	)

	handler := apiinfra.NewHandler(apiinfra.HandlerConfig{
		Improvements: improvementService,
		Settings:     settingsService,
		Installer:    installationService,
		Dispatcher:   dispatcher,
		Credentials:  credentialRepo,
		Products:     catalog,
		Verifier:     verifier,
		Events:       events,
		Metrics:      promhttp.Handler(),
		DevMode:      !cfg.App.IsProd(),
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.App.Port).
			Str("env", cfg.App.Env).
			Str("storage", cfg.Storage.Driver).
			Str("enhancer", cfg.Improvement.EnhancerMode).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func newLogger(cfg config.AppConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "shopify-improvement-core").Logger()
}

// openMedium connects the storage medium selected by STORAGE_DRIVER
func openMedium(ctx context.Context, cfg config.StorageConfig) (storage.Medium, error) {
	switch cfg.Driver {
	case config.DriverFile:
		return storage.NewFileMedium(cfg.DataDir)
	case config.DriverSQLite, config.DriverPostgres:
		conn, err := storage.OpenSQL(cfg.Driver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLMedium(conn)
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		return storage.NewMongoMedium(client, client.Database(cfg.MongoDatabase)), nil
	case config.DriverRedis:
		return storage.NewRedisMedium(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
