package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	maxErrorDelay       = 10 * time.Second
	idleJitter          = 250 * time.Millisecond

	// guardConsumer namespaces the publish markers in the dedupe store.
	guardConsumer = "outbox-publisher"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

// publishGuard remembers rows already handed to Pub/Sub, so a row whose
// published_at write was lost is not sent twice.
type publishGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Guard            publishGuard
	Metrics          *metrics.RelayMetrics
}

// Service drains committed outbox rows to Pub/Sub. Each batch runs in one
// transaction so row claims and status updates commit together.
type Service struct {
	logg       *logger.Logger
	db         dbClient
	pubsub     pubSubClient
	repo       outboxRepository
	registry   registryResolver
	dlq        dlqRepository
	guard      publishGuard
	publishers publisherFactory
	metrics    *metrics.RelayMetrics
	settings   relaySettings
	now        func() time.Time
}

type relaySettings struct {
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func settingsFrom(cfg config.OutboxConfig) relaySettings {
	s := relaySettings{
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = fallbackBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = fallbackMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = fallbackPoll
	}
	return s
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		missing bool
		name    string
	}{
		{params.Config == nil, "config"},
		{params.Logger == nil, "logger"},
		{params.DB == nil, "database client"},
		{params.PubSub == nil, "pubsub client"},
		{params.Repository == nil, "outbox repository"},
		{params.Registry == nil, "event registry"},
		{params.DLQRepository == nil, "dlq repository"},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = topicPublishers(params.PubSub)
	}

	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		pubsub:     params.PubSub,
		repo:       params.Repository,
		registry:   params.Registry,
		dlq:        params.DLQRepository,
		guard:      params.Guard,
		publishers: factory,
		metrics:    params.Metrics,
		settings:   settingsFrom(params.Config.Outbox),
		now:        time.Now,
	}, nil
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next fetch; empty ones wait one poll interval, failures back off.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ready(ctx); err != nil {
		return err
	}

	delay := newBackoff(s.settings.poll, maxErrorDelay, idleJitter)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = delay.next()
		case processed:
			delay.reset()
			continue
		default:
			delay.reset()
			wait = delay.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// ready pings every dependency and reports all failures together.
func (s *Service) ready(ctx context.Context) error {
	var err error
	if pingErr := s.db.Ping(ctx); pingErr != nil {
		err = multierr.Append(err, fmt.Errorf("database ping: %w", pingErr))
	}
	if pingErr := s.pubsub.Ping(ctx); pingErr != nil {
		err = multierr.Append(err, fmt.Errorf("pubsub ping: %w", pingErr))
	}
	if err != nil {
		s.logg.Error(ctx, "outbox publisher dependencies unavailable", err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errNoPublisher = errors.New("no publisher for topic")
