package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mithix/backend/internal/config"
	"github.com/mithix/backend/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open record store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	handler, err := newAPIHandler(ctx, cfg, store, logger)
	if err != nil {
		slog.Error("Failed to build API", "error", err)
		os.Exit(1)
	}

	if cfg.APIKey() == "" {
		slog.Warn("HUGGING_FACE_API_KEY is not set; generation requests will fail until it is configured")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation waits on the upstream call.
		WriteTimeout: cfg.InferenceTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}

// openStore returns the Postgres store when DATABASE_URL is set and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if !cfg.UsePostgres() {
		slog.Info("Using in-memory record store; data is lost on restart")
		return repository.NewMemStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	pg := repository.NewPgStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}
