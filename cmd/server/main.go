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

	"expense-tracker/internal/auth"
	"expense-tracker/internal/config"
	"expense-tracker/internal/handlers"
	"expense-tracker/internal/logging"
	"expense-tracker/internal/ratelimit"
	"expense-tracker/internal/services"
	"expense-tracker/internal/storage"
	"expense-tracker/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// store is what the server needs from either backend.
type store interface {
	services.Store
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	counter, closeCounter, err := newCounter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCounter()

	h, accounts, err := newHandlers(cfg, db, counter, logger)
	if err != nil {
		return err
	}

	created, err := accounts.Bootstrap(ctx, cfg.AdminUser, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	if created {
		logger.Info(ctx, "created initial user", "username", cfg.AdminUser)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", "addr", srv.Addr, "carrier", cfg.AuthCarrier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore selects PostgreSQL when DATABASE_URL is set, sqlite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.DatabaseURL != "" {
		s, err := postgres.NewStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	}
	db, err := storage.NewDB(cfg.DBPath, storage.WithMaxConns(cfg.DBMaxConns))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newCounter returns the shared Redis counter when REDIS_URL is set and a
// process-local one otherwise.
func newCounter(ctx context.Context, cfg *config.Config) (ratelimit.Counter, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryCounter(time.Now), func() {}, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return ratelimit.NewRedisCounter(client), func() { _ = client.Close() }, nil
}

func newHandlers(cfg *config.Config, db services.Store, counter ratelimit.Counter, logger logging.Logger) (*handlers.Handlers, *services.Accounts, error) {
	carrier, err := auth.NewCarrier(cfg.AuthCarrier, cfg.CookieSecure)
	if err != nil {
		return nil, nil, err
	}

	tokens := auth.NewTokenService([]byte(cfg.SecretKey), cfg.AccessTokenTTL)
	params := auth.DefaultParams
	params.Time = cfg.Argon2Time
	params.MemoryKiB = cfg.Argon2MemoryKiB
	params.Threads = cfg.Argon2Threads
	hasher := auth.NewHasher(params)

	accounts := services.NewAccounts(db, hasher, tokens, logger.With("component", "accounts"))
	expenses := services.NewExpenses(db, logger.With("component", "expenses"))

	h := handlers.NewHandlers(accounts, expenses, auth.NewGate(tokens, carrier), handlers.Options{
		Limiter:    ratelimit.New(counter, cfg.RateLimitRequests, cfg.RateLimitWindow),
		TrustProxy: cfg.TrustProxy,
		TokenTTL:   cfg.AccessTokenTTL,
		Logger:     logger.With("component", "http"),
	})
	return h, accounts, nil
}

