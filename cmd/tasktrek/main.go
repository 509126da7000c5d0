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

	"github.com/dukerupert/tasktrek/internal/config"
	"github.com/dukerupert/tasktrek/internal/database"
	"github.com/dukerupert/tasktrek/internal/logging"
	"github.com/dukerupert/tasktrek/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, srv, time.Hour)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("TaskTrek listening", "addr", httpServer.Addr, "driver", cfg.DB.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// cleanupLoop drops expired rate limiter windows until ctx is done.
func cleanupLoop(ctx context.Context, srv *server.Server, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup()
		}
	}
}
