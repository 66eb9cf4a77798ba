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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/telemeds/telemeds/internal/config"
	"github.com/telemeds/telemeds/internal/domain/assistant"
	"github.com/telemeds/telemeds/internal/domain/documents"
	"github.com/telemeds/telemeds/internal/platform/blobstore"
	"github.com/telemeds/telemeds/internal/platform/db"
	"github.com/telemeds/telemeds/internal/platform/metrics"
	"github.com/telemeds/telemeds/internal/platform/middleware"
	"github.com/telemeds/telemeds/internal/platform/openapi"
	"github.com/telemeds/telemeds/migrations"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// uploadBodyLimit leaves room for multipart framing and form fields around
// a file of blobstore.MaxFileSize.
const uploadBodyLimit = "11M"

// app holds the dependencies the router is built from.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   documents.Store
	blobs   blobstore.BlobStore
	gateway *assistant.Gateway
	metrics *metrics.Metrics
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

func newGeminiClient(cfg *config.Config) *assistant.GeminiClient {
	return assistant.NewGeminiClient(assistant.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.AssistantTimeout,
	})
}

// openStore connects the metadata store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, autoMigrate bool, logger zerolog.Logger) (documents.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		if autoMigrate {
			n, err := db.NewMigrator(pool, migrations.FS).Up(ctx, "public")
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
			logger.Info().Int("applied", n).Msg("migrations applied")
		}
		return documents.NewPGStore(pool), nil
	case config.DriverMongo:
		return documents.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, records are lost on restart")
		return documents.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// newRouter wires middleware and routes onto a new echo instance.
func newRouter(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Metrics(a.metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))

	api := e.Group("/api")

	docSvc := documents.NewService(a.store, a.blobs, blobstore.NewNamer(),
		documents.WithRecorder(a.metrics),
		documents.WithLogger(a.logger),
	)
	documents.NewHandler(docSvc).RegisterRoutes(api,
		middleware.BodyLimit(uploadBodyLimit, documents.ErrFileTooLarge))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if a.cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = a.cfg.RateLimitRPS
	}
	if a.cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = a.cfg.RateLimitBurst
	}
	assistant.NewHandler(a.gateway).RegisterRoutes(api, middleware.RateLimit(rateLimitCfg))
	openapi.NewGenerator(version, "/").RegisterRoutes(api)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/store", db.HealthHandler(a.cfg.StoreDriver, a.store))
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	return e
}

func runServer(autoMigrate bool) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		l := newLogger("", "info")
		l.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)

	// Stores
	ctx := context.Background()
	store, err := openStore(ctx, cfg, autoMigrate, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("store close failed")
		}
	}()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to store")

	blobs, err := blobstore.NewLocalBlobStore(cfg.UploadDir)
	if err != nil {
		logger.Error().Err(err).Str("dir", cfg.UploadDir).Msg("failed to prepare upload dir")
		return err
	}

	m := metrics.New()
	if !cfg.AssistantConfigured() {
		logger.Warn().Msg("GEMINI_API_KEY is not set, chatbot will answer with the fallback reply")
	}
	gw := assistant.NewGateway(newGeminiClient(cfg),
		assistant.WithRecorder(m),
		assistant.WithLogger(logger),
	)

	e := newRouter(&app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		blobs:   blobs,
		gateway: gw,
		metrics: m,
	})
	e.Server.ReadTimeout = cfg.HTTPReadTimeout
	e.Server.WriteTimeout = cfg.HTTPWriteTimeout

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
