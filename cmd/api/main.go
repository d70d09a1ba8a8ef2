package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kelvinchng/storefront-backend/api/routes"
	"github.com/kelvinchng/storefront-backend/internal/auth"
	"github.com/kelvinchng/storefront-backend/internal/cart"
	"github.com/kelvinchng/storefront-backend/internal/inventory"
	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/internal/payments"
	"github.com/kelvinchng/storefront-backend/internal/payments/intent"
	"github.com/kelvinchng/storefront-backend/internal/payments/netsqr"
	"github.com/kelvinchng/storefront-backend/internal/payments/paypalgw"
	"github.com/kelvinchng/storefront-backend/internal/payments/stripegw"
	"github.com/kelvinchng/storefront-backend/internal/refunds"
	"github.com/kelvinchng/storefront-backend/internal/users"
	"github.com/kelvinchng/storefront-backend/internal/wallet"
	"github.com/kelvinchng/storefront-backend/pkg/config"
	"github.com/kelvinchng/storefront-backend/pkg/db"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	"github.com/kelvinchng/storefront-backend/pkg/metrics"
	"github.com/kelvinchng/storefront-backend/pkg/migrate"
	pkgnetsqr "github.com/kelvinchng/storefront-backend/pkg/netsqr"
	"github.com/kelvinchng/storefront-backend/pkg/paypal"
	pkgredis "github.com/kelvinchng/storefront-backend/pkg/redis"
	pkgstripe "github.com/kelvinchng/storefront-backend/pkg/stripe"
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

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	gatewayMetrics := metrics.NewGatewayMetrics(registry)

	inventoryService, err := inventory.NewService(dbClient, dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	if err := inventoryService.SnapshotBaseline(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to snapshot inventory baseline", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(dbClient, dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(dbClient, ordersRepo, dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(dbClient, dbClient.DB(), cfg.Wallet, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(dbClient, ordersRepo, ordersService, walletService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	intentStore, err := intent.NewStore(redisClient, cfg.Wallet.IntentTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create intent store", err)
		os.Exit(1)
	}

	netsClient, err := pkgnetsqr.NewClient(context.Background(), cfg.NetsQR, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create nets client", err)
		os.Exit(1)
	}
	netsService, err := netsqr.NewService(dbClient.DB(), netsClient, intentStore, paymentsService, ordersService, walletService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create nets service", err)
		os.Exit(1)
	}
	netsPoller, err := netsqr.NewPoller(dbClient.DB(), netsClient, cfg.NetsQR.PollInterval, cfg.NetsQR.MaxPolls, gatewayMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create nets poller", err)
		os.Exit(1)
	}

	paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paypal client", err)
		os.Exit(1)
	}
	paypalService, err := paypalgw.NewService(dbClient.DB(), paypalClient, intentStore, paymentsService, ordersService, walletService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paypal service", err)
		os.Exit(1)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}
	stripeService, err := stripegw.NewService(dbClient.DB(), stripeClient, intentStore, paymentsService, ordersService, cfg.Stripe.Currency, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe service", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(dbClient.DB(), walletService, paypalClient, stripeClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(users.NewRepository(dbClient.DB()), cfg.JWT, cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
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
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, registry,
			authService, cartService, inventoryService, ordersService, walletService,
			paymentsService, netsService, netsPoller,
			paypalService, stripeService, refundsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
