package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/joho/godotenv"
	"github.com/triage-ai/corral/internal/api"
	"github.com/triage-ai/corral/internal/auth"
	"github.com/triage-ai/corral/internal/catalog"
	"github.com/triage-ai/corral/internal/chread"
	"github.com/triage-ai/corral/internal/engine"
	"github.com/triage-ai/corral/internal/registry"
	"github.com/triage-ai/corral/internal/storage"
	"github.com/triage-ai/corral/internal/store"
	"github.com/triage-ai/corral/internal/tier"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logger := mustBuildLogger(envOrDefault("CORRAL_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	addr := envOrDefault("CORRAL_ADDR", ":8443")
	postgresDSN := os.Getenv("CORRAL_PG_DSN")
	clickhouseDSN := os.Getenv("CORRAL_CLICKHOUSE_DSN")
	cacheTTL := envOrDefaultInt("CORRAL_CACHE_TTL_SECONDS", 30)
	catalogFile := os.Getenv("CORRAL_CATALOG_FILE")
	staticKey := os.Getenv("CORRAL_STATIC_API_KEY")

	logger.Info("starting corral server",
		zap.String("addr", addr),
		zap.Int("cache_ttl_seconds", cacheTTL),
	)

	// Tool catalog — built-ins, plus overrides from the optional YAML file.
	// A malformed file is a startup error, not a silent fallback.
	cat := catalog.Default()
	if catalogFile != "" {
		cfg, err := catalog.LoadConfig(catalogFile)
		if err != nil {
			logger.Fatal("failed to load catalog file",
				zap.String("path", catalogFile),
				zap.Error(err),
			)
		}
		cat = cat.Merge(cfg)
		logger.Info("catalog overrides loaded", zap.String("path", catalogFile))
	}

	eng := engine.NewEngine(cat, tier.DefaultTable(), logger)

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
		logger.Info("no CORRAL_CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Postgres pool — shared by the workspace store, auth, and skill registry.
	// Without it the server runs in static-auth mode with an in-memory registry.
	var db *sql.DB
	if postgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", postgresDSN)
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
		logger.Info("postgres connected")
	}

	ttl := time.Duration(cacheTTL) * time.Second

	var pgStore *store.Store
	var authenticator auth.Authenticator
	var skillRegistry registry.SkillRegistry
	if db != nil {
		pgStore = store.NewStore(db)
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: ttl,
			Logger:   logger,
		})
		skillRegistry = registry.NewPostgresSkillRegistry(registry.PostgresSkillRegistryConfig{
			DB:       db,
			CacheTTL: ttl,
			Logger:   logger,
		})
	} else if staticKey != "" {
		admins := splitList(os.Getenv("CORRAL_STATIC_ADMINS"))
		trusted := splitList(os.Getenv("CORRAL_STATIC_TRUSTED"))
		authenticator = auth.NewStaticAuthenticator(staticKey, admins, trusted)
		skillRegistry = registry.NewMemorySkillRegistry()
		logger.Info("using static authenticator (no CORRAL_PG_DSN)",
			zap.Int("admins", len(admins)),
			zap.Int("trusted", len(trusted)),
		)
	} else {
		logger.Fatal("CORRAL_PG_DSN or CORRAL_STATIC_API_KEY is required")
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

	validator, err := registry.NewManifestValidator()
	if err != nil {
		logger.Fatal("failed to compile manifest schema", zap.Error(err))
	}

	deps := &api.Dependencies{
		Store:     pgStore,
		Engine:    eng,
		Registry:  skillRegistry,
		Auth:      authenticator,
		Validator: validator,
		Writer:    writer,
		Reader:    chReader,
		Logger:    logger,
	}
	httpServer := &http.Server{
		Addr:         addr,
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
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("corral server stopped")
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

// splitList parses a comma-separated identity list, dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
