// Command authd serves the credential lifecycle engine over HTTP.
//
// Configuration comes from the environment (a .env file is honored):
//
//	JWT_SECRET                access token signing secret, required
//	DATABASE_URL              Postgres DSN; omit to run on the in-memory store
//	REDIS_ADDR                validation cache backend; omit to disable caching
//	SENTRY_DSN, APP_ENV       crash reporting
//	LISTEN_ADDR               default :8080
//	ACCESS_TOKEN_TTL_MINUTES, REFRESH_TOKEN_TTL_HOURS,
//	VALIDITY_CHECK_PERIOD_SECONDS
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/flamma/auth"
	"github.com/flamma/auth/httpapi"
	"github.com/flamma/auth/observability"
	"github.com/flamma/auth/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	logger := observability.NewLogger()

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}
	defer observability.FlushSentry()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	cfg := auth.Config{}
	cfg.JWT.Secret = []byte(secret)
	cfg.JWT.Issuer = envOrDefault("JWT_ISSUER", "flamma-auth")
	cfg.JWT.Audience = envOrDefault("JWT_AUDIENCE", "flamma")
	cfg.JWT.TokenValidity = time.Duration(envIntOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute
	cfg.JWT.RefreshTokenValidity = time.Duration(envIntOrDefault("REFRESH_TOKEN_TTL_HOURS", 168)) * time.Hour
	cfg.JWT.ValidityCheckPeriod = time.Duration(envIntOrDefault("VALIDITY_CHECK_PERIOD_SECONDS", 30)) * time.Second
	cfg.Password.Iterations = envIntOrDefault("PASSWORD_HASH_ITERATIONS", 100_000)
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 32
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = envIntOrDefault("AUDIT_BUFFER_SIZE", 256)
	cfg.Audit.DropIfFull = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accountStore, closeStore, err := buildStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := auth.New().
		WithConfig(cfg).
		WithStore(accountStore).
		WithAuditSink(auth.NewJSONWriterSink(os.Stdout)).
		WithWarnLogger(func(format string, args ...any) {
			logger.Warn("auth_engine", map[string]any{"detail": fmt.Sprintf(format, args...)})
		})

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer client.Close()
		builder = builder.WithRedis(client)
		logger.Info("validation_cache_enabled", map[string]any{"addr": addr})
	}

	manager, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build auth manager: %w", err)
	}
	defer manager.Close()

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger, httpapi.NewHandler(manager).Routes()))

	srv := &http.Server{
		Addr:              envOrDefault("LISTEN_ADDR", ":8080"),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("stopped", nil)
	return nil
}

func buildStore(ctx context.Context, logger *observability.Logger) (store.AccountStore, func(), error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Warn("using_memory_store", map[string]any{"detail": "set DATABASE_URL for persistence"})
		return store.NewMemory(), func() {}, nil
	}

	pg, err := store.NewPostgres(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("postgres_store_ready", nil)
	return pg, pg.Close, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
