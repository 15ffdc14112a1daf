package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tourlink-backend/internal/platform"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, logg, err := platform.Boot(ctx, platform.RuntimeOptions{Kind: "outbox-publisher", Redis: true, PubSub: true})
	if err != nil {
		logg.Error(ctx, "outbox publisher failed to start", err)
		os.Exit(1)
	}
	err = run(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		logg.Error(ctx, "error releasing clients", closeErr)
	}
	if err != nil {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *platform.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	guard, err := idempotency.NewManager(rt.Redis, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("publish guard: %w", err)
	}
	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            rt.DB,
		PubSub:        rt.PubSub,
		Repository:    outbox.NewRepository(rt.DB.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(),
		Guard:         guard,
		Metrics:       metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	ctx = logg.WithFields(ctx, rt.Fields(nil))
	go func() {
		if err := metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer); err != nil {
			logg.Error(ctx, "metrics endpoint stopped", err)
		}
	}()

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return nil
}
