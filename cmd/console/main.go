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

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/config"
	"github.com/joao-fontenele/tableorder/internal/messaging"
	"github.com/joao-fontenele/tableorder/internal/receipt"
	"github.com/joao-fontenele/tableorder/internal/reconcile"
	"github.com/joao-fontenele/tableorder/internal/telemetry"
)

const serviceName = "staff-console"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConsole()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	metrics, err := telemetry.NewMetrics(otel.Meter("console"))
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	client := backendapi.NewClient(cfg.BackendURL, telemetry.NewHTTPClient(cfg.HTTPTimeout))
	loop := reconcile.NewLoop(client, cfg.ReconcileInterval, metrics, logger)
	if err := metrics.ObserveSnapshotSize(loop.Size); err != nil {
		logger.Error("failed to register snapshot gauge", "error", err)
		os.Exit(1)
	}

	console := reconcile.NewConsole(client, loop, receipt.NewLogPrinter(logger), metrics, logger)

	mux := http.NewServeMux()
	reconcile.NewHandler(loop, console, cfg.Timezone, logger).Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      telemetry.NewServerHandler(mux, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 10*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting reconcile loop", "interval", cfg.ReconcileInterval)
		return loop.Run(gctx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderStatusChanged, cfg.GroupID, logger)
		defer func() { _ = consumer.Close() }()

		g.Go(func() error {
			logger.Info("consuming order status events", "brokers", cfg.KafkaBrokers, "group_id", cfg.GroupID)
			return consumer.Consume(gctx, messaging.OrderStatusChanged(loop.OnOrderStatusChanged))
		})
	}

	g.Go(func() error {
		logger.Info("starting staff console", "addr", cfg.HTTPAddr, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("staff console stopped", "error", err)
		os.Exit(1)
	}
}
