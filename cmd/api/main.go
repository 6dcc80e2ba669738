package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go-laue-run-monitor/internal/config"
	httpapi "go-laue-run-monitor/internal/http"
	"go-laue-run-monitor/internal/logging"
)

var version = "dev"

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	srv, err := httpapi.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize server")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("version", version).
			Str("addr", cfg.ListenAddr).
			Str("db_driver", cfg.DBDriver).
			Str("schedule", cfg.RefreshSchedule).
			Msg("Starting run monitor API")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server stopped")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}
