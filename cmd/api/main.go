package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dorceinnovative/dorce.ai-sub002/api/routes"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/cart"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/catalog"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/checkout"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/commission"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/coupon"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/escrow"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/orders"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/payments"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/wallet"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/metrics"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/migrate"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/redis"
	pkgstripe "github.com/dorceinnovative/dorce.ai-sub002/pkg/stripe"
)

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gateway, err := payments.NewStripeGateway(stripeClient, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	escrowRepo := escrow.NewRepository(gormDB)
	walletRepo := wallet.NewRepository(gormDB)
	couponRepo := coupon.NewRepository(gormDB)
	commissionRepo := commission.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	escrowSvc, err := escrow.NewService(escrowRepo, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create escrow service", err)
		os.Exit(1)
	}
	couponSvc, err := coupon.NewService(couponRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}
	commissionSvc, err := commission.NewService(commissionRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	cartStore, err := cart.NewStore(redisClient, catalogRepo, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		cartStore,
		catalogRepo,
		ordersRepo,
		escrowSvc,
		couponSvc,
		walletRepo,
		gateway,
		dbClient,
		outboxSvc,
		checkoutMetrics,
		logg,
		cfg.Checkout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		ordersRepo,
		dbClient,
		escrowSvc,
		commissionSvc,
		walletRepo,
		catalogRepo,
		outboxSvc,
		logg,
	)
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
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Carts:    cartStore,
			Checkout: checkoutSvc,
			Orders:   ordersSvc,
			Escrow:   escrowSvc,
			Coupons:  couponRepo,
			Rules:    commissionRepo,
			Resolver: commissionSvc,
			Registry: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
