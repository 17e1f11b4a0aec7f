package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/tinysprouts/tinysprouts-backend/api/routes"
	authsvc "github.com/tinysprouts/tinysprouts-backend/internal/auth"
	cartsvc "github.com/tinysprouts/tinysprouts-backend/internal/cart"
	"github.com/tinysprouts/tinysprouts-backend/internal/catalog"
	checkoutsvc "github.com/tinysprouts/tinysprouts-backend/internal/checkout"
	ordersvc "github.com/tinysprouts/tinysprouts-backend/internal/orders"
	"github.com/tinysprouts/tinysprouts-backend/pkg/auth/session"
	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	"github.com/tinysprouts/tinysprouts-backend/pkg/metrics"
	"github.com/tinysprouts/tinysprouts-backend/pkg/razorpay"
	"github.com/tinysprouts/tinysprouts-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap razorpay", err)
		os.Exit(1)
	}

	catalogClient, err := catalog.NewClient(cfg.Catalog, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap catalog client", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := authsvc.NewService(
		redisClient,
		catalogClient,
		sessionManager,
		authsvc.LogSender{Logger: logg},
		cfg.JWT,
		cfg.OTP,
		cfg.AuthRateLimit,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	snapshots, err := cartsvc.NewRedisSnapshotStore(redisClient, cfg.Checkout.CartSnapshotTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart snapshot store", err)
		os.Exit(1)
	}

	cartStore, err := cartsvc.NewStore(snapshots, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}

	confirmations, err := ordersvc.NewConfirmationStore(redisClient, cfg.Checkout.ConfirmationTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create confirmation store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	checkoutService, err := checkoutsvc.NewService(
		cartStore,
		gateway,
		redisClient,
		confirmations,
		cfg.Checkout,
		checkoutMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(catalogClient, confirmations)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"gateway_env": gateway.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			redisClient,
			catalogClient,
			sessionManager,
			authService,
			cartStore,
			checkoutService,
			ordersService,
			registry,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if listenErr := <-serveErr; listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			err = multierr.Append(err, listenErr)
		}
		if err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
