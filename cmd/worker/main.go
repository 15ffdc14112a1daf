package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/tourlink-backend/internal/hierarchy"
	"github.com/angelmondragon/tourlink-backend/internal/platform"
	"github.com/angelmondragon/tourlink-backend/pkg/instance"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/idempotency"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, logg, err := platform.Boot(ctx, platform.RuntimeOptions{Kind: "worker", Redis: true, PubSub: true})
	if err != nil {
		logg.Error(ctx, "worker failed to start", err)
		os.Exit(1)
	}
	err = run(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		logg.Error(ctx, "error releasing clients", closeErr)
	}
	if err != nil {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *platform.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	services, err := platform.NewServices(cfg, rt.DB, nil, logg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	markers, err := idempotency.NewManager(rt.Redis, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}

	subscription := rt.PubSub.DownlineSubscription()
	if subscription == nil {
		return errors.New("downline subscription not configured")
	}
	downline, err := hierarchy.NewDownlineConsumer(services.Hierarchy, subscription, markers, logg)
	if err != nil {
		return fmt.Errorf("downline consumer: %w", err)
	}

	svc, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: map[string]pinger{
			"database": rt.DB,
			"redis":    rt.Redis,
			"pubsub":   rt.PubSub,
		},
		Consumers: map[string]consumer{"downline-reconciler": downline},
	})
	if err != nil {
		return fmt.Errorf("worker service: %w", err)
	}

	ctx = logg.WithFields(ctx, rt.Fields(map[string]any{"instance": instance.GetID()}))
	logg.Info(ctx, "starting worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "worker shutting down gracefully")
	return nil
}
