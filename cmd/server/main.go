package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/salon-margin/internal/avec"
	"github.com/Simplici0/salon-margin/internal/config"
	"github.com/Simplici0/salon-margin/internal/db"
	"github.com/Simplici0/salon-margin/internal/ledger"
	"github.com/Simplici0/salon-margin/internal/seed"
	"github.com/Simplici0/salon-margin/internal/session"
	"github.com/Simplici0/salon-margin/internal/settings"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
	}

	stats, err := seed.Run(ctx, database, cfg.DefaultRates)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed database")
	}
	logger.Debug().Int("inserts", stats.Inserts).Msg("seed done")

	fetcher := avec.NewClient(cfg.AvecReportURL, cfg.AvecToken, &http.Client{Timeout: cfg.AvecTimeout}, logger)
	store := ledger.NewStore(cfg.CostFile, logger)
	sess := session.New(fetcher, store, cfg.CatalogTTL, logger)
	srv := newServer(sess, settings.NewRepository(database), logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * cfg.AvecTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newLogger writes human-readable output in development and JSON otherwise.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
