package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/rainfall-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/rainfall-etl/internal/adapter/hko"
	httpadapter "github.com/couchcryptid/rainfall-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/rainfall-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rainfall-etl/internal/config"
	"github.com/couchcryptid/rainfall-etl/internal/observability"
	"github.com/couchcryptid/rainfall-etl/internal/pipeline"
	"github.com/couchcryptid/rainfall-etl/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := hko.NewClient(cfg.FetchTimeout, cfg.FetchCacheSize, logger, metrics)

	endpoints := cfg.Endpoints
	if cfg.CandidatesFile != "" {
		candidates, err := hko.LoadCandidates(cfg.CandidatesFile)
		if err != nil {
			logger.Error("failed to load candidates", "path", cfg.CandidatesFile, "error", err)
			os.Exit(1)
		}
		endpoints = append(endpoints, hko.FilterCandidates(candidates)...)
		logger.Info("candidates loaded", "path", cfg.CandidatesFile, "candidates", len(candidates))
	}

	var discoverer pipeline.Discoverer
	if len(cfg.DiscoveryPages) > 0 {
		discoverer = client
	}

	collector := pipeline.NewCollector(client, pipeline.CollectorConfig{
		Days:        cfg.CollectDays,
		ProbeStride: cfg.ProbeStride,
		QueryParams: cfg.QueryParams,
		Delay:       cfg.RequestDelay,
		Location:    cfg.Location,
	}, logger, metrics)

	loaders := []pipeline.Loader{csvstore.NewFileSink(cfg.SnapshotPath, logger)}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		loaders = append(loaders, writer)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(collector, discoverer, pipeline.Sources{
		Endpoints:      endpoints,
		DiscoveryPages: cfg.DiscoveryPages,
	}, loaders, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunOnce {
		_, err := p.RunOnce(ctx)
		closeWriter(writer, logger)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	sched := scheduler.New(cfg.CollectInterval, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled collection.
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeWriter(writer, logger)

	logger.Info("shutdown complete")
}

func closeWriter(w *kafkaadapter.Writer, logger *slog.Logger) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
}
