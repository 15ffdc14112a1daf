package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger *logger.Logger
	// Dependencies are pinged before any consumer starts, keyed by the name
	// used in errors and logs.
	Dependencies map[string]pinger
	Consumers    map[string]consumer
}

// Service runs every subscription consumer until the context ends or one of
// them fails, which stops the rest.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	consumers map[string]consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, dep := range params.Dependencies {
		if dep == nil {
			return nil, fmt.Errorf("%s client is required", name)
		}
	}
	return &Service{logg: params.Logger, deps: params.Dependencies, consumers: params.Consumers}, nil
}

func (s *Service) ready(ctx context.Context) error {
	var err error
	for _, name := range sortedKeys(s.deps) {
		if pingErr := s.deps[name].Ping(ctx); pingErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s ping failed: %w", name, pingErr))
		}
	}
	return err
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ready(ctx); err != nil {
		s.logg.Error(ctx, "worker dependencies unavailable", err)
		return err
	}
	s.logg.Info(ctx, "worker dependencies ready")

	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range sortedKeys(s.consumers) {
		c := s.consumers[name]
		consumerCtx := s.logg.WithField(groupCtx, "consumer", name)
		group.Go(func() error {
			if err := c.Run(consumerCtx); err != nil {
				return fmt.Errorf("consumer %s: %w", name, err)
			}
			return nil
		})
	}

	err := group.Wait()
	switch {
	case ctx.Err() != nil:
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err != nil:
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
