// Package app wires the checkout service onto Postgres, Redis and Kafka. It
// is shared by cmd/api and cmd/settlement.
package app

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-apparel-checkout/internal/catalog"
	"github.com/ariefcatur/go-apparel-checkout/internal/checkout"
	"github.com/ariefcatur/go-apparel-checkout/internal/config"
	"github.com/ariefcatur/go-apparel-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/go-apparel-checkout/internal/kafka"
	"github.com/ariefcatur/go-apparel-checkout/internal/metrics"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/ariefcatur/go-apparel-checkout/internal/payment"
	"github.com/ariefcatur/go-apparel-checkout/internal/postgres"
	"github.com/ariefcatur/go-apparel-checkout/internal/redisx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Runtime struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Producer *kafkax.Producer
	Events   *kafkax.OrderEvents
	Checkout *checkout.Service
	Metrics  *metrics.Metrics

	log *zap.Logger
}

// Open connects the backing stores, migrates the schema and starts the
// event producer. Close releases everything in reverse order.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (*Runtime, error) {
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.SeedDemo {
		seeded, err := postgres.SeedDemo(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		log.Info("demo_catalog", zap.Bool("seeded", seeded))
	}

	rdb := redisx.New(cfg.RedisAddr)
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis_unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()
	events := &kafkax.OrderEvents{Producer: prod, Service: cfg.ServiceName}

	m := metrics.New(reg)
	ledger := &inventory.PGLedger{DB: db}
	applier := &inventory.Applier{Ledger: ledger, Log: log, Metrics: m}

	gateways := payment.NewRegistry(
		payment.CashOnDelivery{},
		payment.NewHostedCheckout(payment.HostedConfig{
			BaseURL:   cfg.CheckoutURL,
			SecretKey: cfg.CheckoutSecretKey,
			Currency:  cfg.Currency,
			Timeout:   cfg.GatewayTimeout,
		}),
		payment.NewGatewayOrders(payment.GatewayOrdersConfig{
			BaseURL:   cfg.GatewayURL,
			KeyID:     cfg.GatewayKeyID,
			KeySecret: cfg.GatewayKeySecret,
			Currency:  cfg.Currency,
			Timeout:   cfg.GatewayTimeout,
		}),
	)

	svc := &checkout.Service{
		Catalog:      &catalog.Repo{DB: db},
		Checker:      &inventory.Checker{Ledger: ledger},
		Stock:        applier,
		Orders:       orders.NewManager(&orders.Repo{DB: db}, applier, log, m),
		Gateways:     gateways,
		Events:       events,
		Idem:         &redisx.Idempotency{RDB: rdb},
		Status:       &redisx.StatusCache{RDB: rdb},
		Carts:        &redisx.Carts{RDB: rdb},
		DeliveryFee:  cfg.DeliveryFee,
		DeliveryDays: cfg.DeliveryDays,
		Log:          log,
		Metrics:      m,
	}

	return &Runtime{
		DB:       db,
		Redis:    rdb,
		Producer: prod,
		Events:   events,
		Checkout: svc,
		Metrics:  m,
		log:      log,
	}, nil
}

// Close flushes buffered events before closing the stores.
func (r *Runtime) Close() {
	r.Producer.Close()
	r.Producer.WaitClosed()
	if err := r.Redis.Close(); err != nil {
		r.log.Warn("redis_close_failed", zap.Error(err))
	}
	r.DB.Close()
}
