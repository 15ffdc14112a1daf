package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/tourlink-backend/api/routes"
	"github.com/angelmondragon/tourlink-backend/internal/platform"
	"github.com/angelmondragon/tourlink-backend/pkg/instance"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, logg, err := platform.Boot(ctx, platform.RuntimeOptions{Kind: "api", Redis: true})
	if err != nil {
		logg.Error(ctx, "api failed to start", err)
		os.Exit(1)
	}
	err = serve(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		logg.Error(ctx, "error releasing clients", closeErr)
	}
	if err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, rt *platform.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := platform.NewServices(cfg, rt.DB, registry, logg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// PORT is set by the hosting platform and wins over config.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(
			cfg, logg, rt.DB, rt.Redis, registry,
			services.Hierarchy,
			services.Referrals,
			services.Catalog,
			services.Ledger,
			services.Bookings,
			services.Commissions,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, rt.Fields(map[string]any{
		"addr":     server.Addr,
		"instance": instance.GetID(),
	}))
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
