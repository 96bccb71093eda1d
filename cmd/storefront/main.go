package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodsearch/storefront/api/routes"
	"github.com/foodsearch/storefront/internal/cart"
	"github.com/foodsearch/storefront/internal/catalog"
	"github.com/foodsearch/storefront/internal/checkout"
	"github.com/foodsearch/storefront/internal/orders"
	"github.com/foodsearch/storefront/internal/session"
	"github.com/foodsearch/storefront/pkg/config"
	"github.com/foodsearch/storefront/pkg/logger"
	"github.com/foodsearch/storefront/pkg/metrics"
	"github.com/foodsearch/storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	snapshots, err := cart.NewRedisSnapshots(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to wire cart snapshots", err)
		os.Exit(1)
	}
	cartStore, err := cart.NewStore(cart.Rehydrate(ctx, snapshots, logg), snapshots, logg, checkoutMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create cart store", err)
		os.Exit(1)
	}

	tokenSlot, err := session.NewRedisTokenSlot(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to wire token slot", err)
		os.Exit(1)
	}
	sessionManager, err := session.NewManager(tokenSlot, cfg.Backend, logg)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}
	sessionManager.Restore(ctx)

	catalogClient, err := catalog.NewClient(cfg.Backend, logg)
	if err != nil {
		logg.Error(ctx, "failed to create catalog client", err)
		os.Exit(1)
	}
	orderClient, err := orders.NewClient(cfg.Backend, logg)
	if err != nil {
		logg.Error(ctx, "failed to create order client", err)
		os.Exit(1)
	}

	submitGuard, err := checkout.NewRedisSubmitGuard(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to wire submit guard", err)
		os.Exit(1)
	}

	checkoutMachine, err := checkout.NewMachine(cartStore, orderClient, sessionManager, submitGuard, logg, checkoutMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create checkout machine", err)
		os.Exit(1)
	}

	session.Bind(sessionManager, cartStore, checkoutMachine, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			logg,
			redisClient,
			registry,
			httpMetrics,
			sessionManager,
			cartStore,
			catalogClient,
			orderClient,
			checkoutMachine,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		os.Exit(1)
	}
}
