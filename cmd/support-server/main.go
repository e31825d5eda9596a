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

	"github.com/rs/zerolog"

	"support-chat-backend/internal/config"
	"support-chat-backend/internal/logger"
	"support-chat-backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server exited")
}

// run serves until ctx is cancelled, then shuts down and releases the stores.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	s, err := server.NewServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", httpServer.Addr).Str("backend", cfg.InferenceBackend).Msg("support chat server listening")
	serveErr := httpServer.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
		<-shutdownDone
	}

	if err := s.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close session stores")
		if serveErr == nil {
			return fmt.Errorf("failed to close session stores: %w", err)
		}
	}
	return serveErr
}
