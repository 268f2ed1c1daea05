package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-apparel-checkout/internal/app"
	"github.com/ariefcatur/go-apparel-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-apparel-checkout/internal/kafka"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/ariefcatur/go-apparel-checkout/internal/redisx"
	"github.com/ariefcatur/go-apparel-checkout/internal/settlement"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNew(cfg.ServiceName+"-settlement", cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		log.Fatal("startup_failed", zap.Error(err))
	}
	defer rt.Close()

	svc := &settlement.Service{
		Checkout: rt.Checkout,
		Dedup:    &redisx.Dedup{RDB: rt.Redis, Service: "settlement"},
		Log:      log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.SettlementGroup, orders.TopicPaymentResult, cfg.SettlementWorkers, log)

	log.Info("settlement_consumer_started",
		zap.String("group", cfg.SettlementGroup),
		zap.String("topic", orders.TopicPaymentResult),
		zap.Int("workers", cfg.SettlementWorkers),
	)
	// Start returns once ctx is canceled and the workers are drained
	if err := cons.Start(ctx, svc.HandlePaymentResult); err != nil && ctx.Err() == nil {
		log.Error("consumer_exit", zap.Error(err))
	}
	log.Info("shutting_down")
}
