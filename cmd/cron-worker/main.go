package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tourlink-backend/internal/cron"
	"github.com/angelmondragon/tourlink-backend/internal/platform"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, logg, err := platform.Boot(ctx, platform.RuntimeOptions{Kind: "cron-worker", Redis: true})
	if err != nil {
		logg.Error(ctx, "cron worker failed to start", err)
		os.Exit(1)
	}
	err = run(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		logg.Error(ctx, "error releasing clients", closeErr)
	}
	if err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *platform.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	services, err := platform.NewServices(cfg, rt.DB, prometheus.DefaultRegisterer, logg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	expiryJob, err := cron.NewBookingExpiryJob(cron.BookingExpiryJobParams{
		Logger:   logg,
		Bookings: services.Bookings,
		TTL:      cfg.Booking.PendingTTL,
	})
	if err != nil {
		return fmt.Errorf("booking expiry job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         rt.DB,
		Repository: outbox.NewRepository(rt.DB.DB()),
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	registry, err := cron.NewRegistry(expiryJob, retentionJob)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithFields(ctx, rt.Fields(nil))
	go func() {
		if err := metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer); err != nil {
			logg.Error(ctx, "metrics endpoint stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
