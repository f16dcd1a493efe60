// Command placement computes ranked AED installation sites for a set of
// regions, writes them to the configured sinks and serves the latest result
// over HTTP until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/aed-placement/internal/adapter/csvfile"
	"github.com/couchcryptid/aed-placement/internal/adapter/geojson"
	httpadapter "github.com/couchcryptid/aed-placement/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aed-placement/internal/adapter/kafka"
	"github.com/couchcryptid/aed-placement/internal/adapter/mapbox"
	"github.com/couchcryptid/aed-placement/internal/adapter/sqlite"
	"github.com/couchcryptid/aed-placement/internal/config"
	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/engine"
	"github.com/couchcryptid/aed-placement/internal/observability"
	"github.com/couchcryptid/aed-placement/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.TracingServiceName,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(cfg.Params(), logger, metrics)
	if err != nil {
		logger.Error("invalid engine parameters", "error", err)
		os.Exit(1)
	}

	// Reverse geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.ReverseGeocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	format := csvfile.FormatCSV
	if cfg.OutputJSON() {
		format = csvfile.FormatJSON
	}
	sinks := []pipeline.ResultSink{csvfile.NewFileSink(cfg.OutputPath, format, logger)}
	var closers []io.Closer

	var (
		history httpadapter.RunHistory
		ready   = []sharedobs.ReadinessChecker{}
	)
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open run history", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
		history = store
		ready = append(ready, store)
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(
		geojson.NewRegionLoader(cfg.RegionsPath, logger),
		csvfile.NewFacilityLoader(cfg.FacilitiesPath, logger),
		eng,
		pipeline.NewEnricher(geocoder, logger),
		sinks,
		logger,
		metrics,
		pipeline.Options{SinkMaxAttempts: cfg.SinkMaxAttempts},
	)
	ready = append([]sharedobs.ReadinessChecker{p}, ready...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(ready...), p, history, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the placement pipeline once.
	exitCode := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	}()

	if cfg.ExitAfterRun {
		select {
		case <-done:
		case <-ctx.Done():
			<-done
		}
	} else {
		<-ctx.Done()
		<-done
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
	observability.ShutdownTracing(shutdownCtx, shutdownTracing, logger)

	logger.Info("shutdown complete")
	if cfg.ExitAfterRun && exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
