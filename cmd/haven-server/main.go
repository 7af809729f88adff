package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/haven-ai/haven/internal/alert"
	"github.com/haven-ai/haven/internal/api"
	"github.com/haven-ai/haven/internal/chread"
	"github.com/haven-ai/haven/internal/engine"
	"github.com/haven-ai/haven/internal/sessions"
	"github.com/haven-ai/haven/internal/storage"
	"github.com/haven-ai/haven/internal/store"
	"github.com/haven-ai/haven/internal/taxonomy"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("HAVEN_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("HAVEN_HTTP_PORT", "8080")
	taxonomyPath := os.Getenv("HAVEN_TAXONOMY_PATH")
	alertsPath := os.Getenv("HAVEN_ALERTS_PATH")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	cacheTTL := envOrDefaultInt("HAVEN_AUTH_CACHE_TTL_S", 30)
	sessionTTLMin := envOrDefaultInt("HAVEN_SESSION_TTL_MIN", 30)

	cfg := engine.DefaultEscalationConfig()
	cfg.EnhancedMin = envOrDefaultInt("HAVEN_ENHANCED_MIN", cfg.EnhancedMin)
	cfg.CrisisMin = envOrDefaultInt("HAVEN_CRISIS_MIN", cfg.CrisisMin)
	cfg.CleanStreak = envOrDefaultInt("HAVEN_CLEAN_STREAK", cfg.CleanStreak)

	logger.Info("starting haven server",
		zap.String("http_port", httpPort),
		zap.Int("enhanced_min", cfg.EnhancedMin),
		zap.Int("crisis_min", cfg.CrisisMin),
		zap.Int("clean_streak", cfg.CleanStreak),
	)

	// Taxonomy: file-based with hot reload, or the built-in defaults
	tax := taxonomy.Default()
	if taxonomyPath != "" {
		loaded, err := taxonomy.Load(taxonomyPath)
		if err != nil {
			logger.Fatal("failed to load taxonomy", zap.String("path", taxonomyPath), zap.Error(err))
		}
		tax = loaded
		logger.Info("taxonomy loaded", zap.String("path", taxonomyPath))
	}

	detector := engine.NewDetector(tax, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if taxonomyPath != "" {
		watcher, err := taxonomy.NewWatcher(taxonomyPath, detector.Reload, logger)
		if err != nil {
			logger.Warn("taxonomy watcher unavailable, hot reload disabled", zap.Error(err))
		} else {
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Warn("taxonomy watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	// Session registry with idle eviction
	registry := sessions.NewRegistry(time.Duration(sessionTTLMin)*time.Minute, logger)
	go registry.Run(ctx)

	// Storage — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Crisis alert webhooks
	var dispatcher *alert.Dispatcher
	if alertsPath != "" {
		configs, err := alert.LoadConfigs(alertsPath)
		if err != nil {
			logger.Fatal("failed to load alert config", zap.String("path", alertsPath), zap.Error(err))
		}
		dispatcher = alert.NewDispatcher(configs, logger)
		logger.Info("alert webhooks configured", zap.Int("count", len(configs)))
	}

	// Postgres pool (required for HTTP API)
	var pgStore *store.Store
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		logger.Info("postgres connected")
	} else {
		logger.Fatal("POSTGRES_DSN is required")
	}

	// ClickHouse reader (for events/analytics HTTP endpoints)
	var chReader *chread.Reader
	if clickhouseDSN != "" {
		var err error
		chReader, err = chread.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	deps := &api.Dependencies{
		Store:    pgStore,
		Detector: detector,
		Sessions: registry,
		Writer:   writer,
		Reader:   chReader,
		Alerts:   dispatcher,
		Logger:   logger,
		CacheTTL: time.Duration(cacheTTL) * time.Second,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("received signal, shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("haven server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
