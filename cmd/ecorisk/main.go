package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/ecorisk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ecorisk-service/internal/adapter/kafka"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/source"
	"github.com/couchcryptid/ecorisk-service/internal/config"
	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
	"github.com/couchcryptid/ecorisk-service/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	model, err := domain.NewDamageModel(cfg.DamageSensitivity)
	if err != nil {
		logger.Error("invalid damage model", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := source.New(ctx, cfg, clock, metrics, logger)
	if err != nil {
		logger.Error("failed to open data source", "error", err, "source", cfg.DataSource)
		os.Exit(1)
	}

	// Result publishing is feature-flagged via RESULTS_KAFKA_ENABLED.
	var publisher *kafkaadapter.Publisher
	opts := session.Options{
		Model:             model,
		Unit:              cfg.DamageUnit,
		DefaultIterations: cfg.DefaultIterations,
		MaxIterations:     cfg.MaxIterations,
		DefaultTopN:       cfg.DefaultTopN,
		DefaultSeed:       cfg.SimulationSeed,
		Clock:             clock,
	}
	if cfg.ResultsKafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		opts.Publisher = publisher
		logger.Info("result publishing enabled", "topic", cfg.ResultsTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("result publishing disabled")
	}

	svc := session.New(provider, opts, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, cfg.DefaultTopN, logger)

	// Start HTTP server. /readyz reports 503 until the tables are loaded.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load session tables, retrying until the source is reachable.
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("session load error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := closeProvider(); err != nil {
		logger.Error("data source close error", "error", err)
	}

	logger.Info("shutdown complete")
}
