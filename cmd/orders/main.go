package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/shopfront/orders-service/internal/config"
	"github.com/shopfront/orders-service/internal/identity"
	"github.com/shopfront/orders-service/internal/orders"
	"github.com/shopfront/orders-service/internal/pricing"
	"github.com/shopfront/orders-service/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	rates, err := cfg.Pricing.Rates()
	if err != nil {
		logger.Error("invalid pricing config", "error", err)
		os.Exit(1)
	}

	repo := orders.NewOrderRepository(db, pricing.NewCalculator(rates))
	handler, err := orders.NewHandler(repo, logger)
	if err != nil {
		logger.Error("failed to create handler", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("POST /orders", identity.RequireUser(logger, handler.HandleCreate))
	route("GET /orders", identity.RequireUser(logger, handler.HandleListMine))
	route("GET /orders/stats/summary", identity.RequireUser(logger, handler.HandleUserStats))
	route("GET /orders/{id}", identity.RequireUser(logger, handler.HandleGet))
	route("PUT /orders/{id}/cancel", identity.RequireUser(logger, handler.HandleCancel))

	route("GET /admin/orders", identity.RequireAdmin(logger, handler.HandleAdminList))
	route("GET /admin/orders/{id}", identity.RequireAdmin(logger, handler.HandleAdminGet))
	route("PUT /admin/orders/{id}/status", identity.RequireAdmin(logger, handler.HandleAdminUpdateStatus))
	route("DELETE /admin/orders/{id}", identity.RequireAdmin(logger, handler.HandleAdminDelete))
	route("GET /admin/dashboard/stats", identity.RequireAdmin(logger, handler.HandleAdminDashboard))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(identity.Middleware(mux), "orders"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
