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

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/checkout"
	"github.com/joao-fontenele/tableorder/internal/config"
	"github.com/joao-fontenele/tableorder/internal/payment/wsbridge"
	"github.com/joao-fontenele/tableorder/internal/reconcile"
	"github.com/joao-fontenele/tableorder/internal/telemetry"
)

const serviceName = "kiosk"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadKiosk()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewMetrics(otel.Meter("kiosk"))
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	client := backendapi.NewClient(cfg.BackendURL, telemetry.NewHTTPClient(cfg.HTTPTimeout))
	bridges := wsbridge.NewRegistry(logger, wsbridge.WithAllowedOrigins(cfg.AllowedOrigins))

	service := checkout.NewService(client, bridges, metrics, logger,
		checkout.WithGatewayTimeout(cfg.BridgeOpenTimeout))
	checkoutHandler := checkout.NewHandler(service, logger)

	watchers := reconcile.NewWatchers(client, cfg.StatusPollInterval, logger)
	defer watchers.Close()
	statusHandler := reconcile.NewStatusHandler(watchers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckout))
	mux.HandleFunc("GET /orders/{id}/status", telemetry.WithHTTPRoute(statusHandler.HandleStatus))
	mux.HandleFunc("GET /bridge/{session}", bridges.ServeWS)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     telemetry.NewServerHandler(mux, serviceName),
		ReadTimeout: 10 * time.Second,
		// A checkout holds its request open while the guest completes the payment widget.
		WriteTimeout: cfg.BridgeOpenTimeout + cfg.HTTPTimeout*3,
	}

	go func() {
		logger.Info("starting kiosk service", "addr", cfg.HTTPAddr, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
