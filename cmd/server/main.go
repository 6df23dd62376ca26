package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/adapters/archive"
	"github.com/dkeye/mafia/internal/adapters/httpapi"
	"github.com/dkeye/mafia/internal/config"
	"github.com/dkeye/mafia/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	server := core.NewServer(core.ServerConfig{
		MaxClientInactiveTime: cfg.MaxClientInactiveTime,
		RandomizeDeathMessage: cfg.RandomizeDeathMessage,
	})

	if cfg.ArchivePath != "" {
		arc, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			log.Error().Err(err).Msg("failed to open archive")
		} else {
			defer arc.Close()
			server.SetEventSink(arc)
		}
	}

	ticker := server.StartTicker(cfg.TickInterval)

	r := httpapi.SetupRouter(ctx, cfg, server)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Mafia server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	ticker.Shutdown()
	<-ticker.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
