package platform

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/migrate"
	"github.com/angelmondragon/tourlink-backend/pkg/pubsub"
	"github.com/angelmondragon/tourlink-backend/pkg/redis"
)

// RuntimeOptions picks which shared clients a binary needs besides the
// database, which every binary opens.
type RuntimeOptions struct {
	Kind   string
	Redis  bool
	PubSub bool
}

// Runtime is the set of process-wide clients opened at start-up. Close
// releases them in reverse order.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
	PubSub *pubsub.Client

	closers []func() error
}

// Boot loads .env and config, builds the configured logger, connects the
// requested clients and applies dev migrations. On failure it returns the
// best logger it managed to build so the caller can report the error.
func Boot(ctx context.Context, opts RuntimeOptions) (*Runtime, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: opts.Kind})
	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = opts.Kind
	logg = logger.New(logger.Options{
		ServiceName: opts.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	rt := &Runtime{Config: cfg, Logger: logg}
	if err := rt.connect(ctx, opts); err != nil {
		if closeErr := rt.Close(); closeErr != nil {
			logg.Error(ctx, "error releasing partial runtime", closeErr)
		}
		return nil, logg, err
	}
	return rt, logg, nil
}

func (r *Runtime) connect(ctx context.Context, opts RuntimeOptions) error {
	client, err := db.New(ctx, r.Config.DB, r.Logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	r.DB = client
	r.closers = append(r.closers, client.Close)

	if err := migrate.MaybeRunDev(ctx, r.Config, r.Logger, client); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	if opts.Redis {
		rc, err := redis.New(ctx, r.Config.Redis, r.Logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		r.Redis = rc
		r.closers = append(r.closers, rc.Close)
	}
	if opts.PubSub {
		ps, err := pubsub.NewClient(ctx, r.Config.GCP, r.Config.PubSub, r.Logger)
		if err != nil {
			return fmt.Errorf("connect pubsub: %w", err)
		}
		r.PubSub = ps
		r.closers = append(r.closers, ps.Close)
	}
	return nil
}

// Close releases every client and reports all failures together.
func (r *Runtime) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	r.closers = nil
	return err
}

// Fields are the log fields every binary stamps on its root context.
func (r *Runtime) Fields(extra map[string]any) map[string]any {
	fields := map[string]any{
		"env":         r.Config.App.Env,
		"serviceKind": r.Config.Service.Kind,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}
