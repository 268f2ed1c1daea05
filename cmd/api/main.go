package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/app"
	"github.com/ariefcatur/go-apparel-checkout/internal/config"
	"github.com/ariefcatur/go-apparel-checkout/internal/httpx"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNew(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := app.Open(ctx, cfg, log, reg)
	if err != nil {
		log.Fatal("startup_failed", zap.Error(err))
	}

	router := httpx.NewRouter(log, reg)
	(&httpx.OrdersHandler{Checkout: rt.Checkout, AdminToken: cfg.AdminToken}).Register(router)
	(&httpx.WebhookHandler{Relay: rt.Events, Token: cfg.WebhookToken}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http_listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_listen_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting_down")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http_shutdown_failed", zap.Error(err))
	}
	rt.Close()
}
