package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/maison-pos/api/routes"
	"github.com/angelmondragon/maison-pos/internal/catalog"
	"github.com/angelmondragon/maison-pos/internal/discounts"
	"github.com/angelmondragon/maison-pos/internal/orders"
	"github.com/angelmondragon/maison-pos/internal/payments"
	"github.com/angelmondragon/maison-pos/internal/receipts"
	"github.com/angelmondragon/maison-pos/internal/register"
	"github.com/angelmondragon/maison-pos/internal/settings"
	"github.com/angelmondragon/maison-pos/internal/sku"
	"github.com/angelmondragon/maison-pos/internal/staff"
	"github.com/angelmondragon/maison-pos/internal/storefront"
	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/db"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
	"github.com/angelmondragon/maison-pos/pkg/migrate"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
	"github.com/angelmondragon/maison-pos/pkg/redis"
	"github.com/angelmondragon/maison-pos/pkg/square"
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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewRegisterMetrics(registry)

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	staffService, err := staff.NewService(staff.NewRepository(dbClient.DB()), cfg.Password, logg)
	if err != nil {
		return err
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	sequence, err := skuSequence(cfg, dbClient, redisClient)
	if err != nil {
		return err
	}
	allocator, err := sku.NewAllocator(catalogRepo, sequence, m, logg)
	if err != nil {
		return err
	}
	catalogService, err := catalog.NewService(catalogRepo, dbClient, allocator, events, m, logg)
	if err != nil {
		return err
	}

	discountService, err := discounts.NewService(discounts.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return err
	}
	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), cfg, logg)
	if err != nil {
		return err
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Outbox:    events,
		Inventory: catalogRepo,
		Usage:     discountService,
		Guard:     redisClient,
		GuardTTL:  cfg.POS.FinalizeGuardTTL,
		Profile:   settingsService,
		Metrics:   m,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	receiptsService, err := receipts.NewService(ordersService, staff.NewRepository(dbClient.DB()), settingsService)
	if err != nil {
		return err
	}
	storefrontService, err := storefront.NewService(catalogService, discountService, settingsService, logg)
	if err != nil {
		return err
	}

	gateways, err := gatewayFactory(ctx, cfg, logg)
	if err != nil {
		return err
	}

	registers, err := register.NewManager(register.ManagerParams{
		Config:    cfg,
		Products:  catalogService,
		Discounts: discountService,
		Plans:     settingsService,
		Currency:  settingsService,
		Orders:    ordersService,
		Staff:     staffService,
		Gateways:  gateways,
		Store:     redisClient,
		Metrics:   m,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	defer registers.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"gateway":      cfg.Gateway.Driver,
		"sku_sequence": sequence.Backend(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registers,
			staffService,
			catalogService,
			storefrontService,
			receiptsService,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func skuSequence(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client) (sku.Sequence, error) {
	if cfg.POS.SequenceBackend() == config.SequenceBackendRedis {
		return sku.NewRedisSequence(redisClient)
	}
	return sku.NewGormSequence(dbClient.DB()), nil
}

// gatewayFactory shares one Square terminal across registers. Simulated
// registers each get their own gateway.
func gatewayFactory(ctx context.Context, cfg *config.Config, logg *logger.Logger) (register.GatewayFactory, error) {
	if !cfg.Gateway.IsSquare() {
		logg.Warn(ctx, "card payments use the simulated gateway")
		return func(string) (payments.Gateway, error) {
			return payments.NewSimulatedGateway(), nil
		}, nil
	}

	client, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	terminal, err := square.NewTerminal(client, cfg.Square, nil)
	if err != nil {
		return nil, err
	}
	gateway, err := payments.NewSquareGateway(terminal)
	if err != nil {
		return nil, err
	}
	return func(string) (payments.Gateway, error) { return gateway, nil }, nil
}
