package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilyardvmetro/quill/internal/config"
	"github.com/bilyardvmetro/quill/internal/logger"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/pubsub"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/bilyardvmetro/quill/internal/server"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	logger.Log.Info().Msg("Logger initialized")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st repo.Repo
	switch cfg.Server.Store {
	case "pg":
		if cfg.Server.PostgresDSN == "" {
			logger.Log.Fatal().Msg("POSTGRES_DSN environment variable not set")
		}
		pg, err := repo.NewPostgres(cfg.Server.PostgresDSN)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to postgres")
		}
		if err := pg.Migrate(rootCtx); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to migrate postgres schema")
		}
		st = pg
	default:
		st = repo.NewMemRepo()
	}

	var bus pubsub.Bus[model.Comment]
	switch cfg.Server.Bus {
	case "pg":
		pgBus, err := pubsub.NewPgBus[model.Comment](rootCtx, cfg.Server.PostgresDSN, logger.Log)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to start postgres bus")
		}
		bus = pgBus
	default:
		bus = pubsub.NewMemoryBus[model.Comment]()
	}

	srv := server.New(server.Options{
		Repo:        st,
		Bus:         bus,
		Log:         logger.Log,
		PageSize:    cfg.Server.PageSize,
		TokenTTL:    cfg.Client.SessionTTL,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Server.Store).Str("bus", cfg.Server.Bus).Msg("starting server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("http server stopped")
		}
	}()

	<-rootCtx.Done()
	logger.Log.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("http server shutdown error")
	} else {
		logger.Log.Info().Msg("http server shutdown successfully")
	}

	closeIfNeeded(bus, "subscription bus")
	closeIfNeeded(st, "store")

	logger.Log.Info().Msg("graceful shutdown complete")
}

func closeIfNeeded(x any, name string) {
	if c, ok := x.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			logger.Log.Error().Err(err).Str("component", name).Msg("close error")
			return
		}
		logger.Log.Info().Str("component", name).Msg("closed")
	}
}
