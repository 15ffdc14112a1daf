package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

const (
	defaultPendingTTL      = 48 * time.Hour
	defaultExpiryBatchSize = 200
)

// BookingExpiryJobParams configure the pending booking sweep.
type BookingExpiryJobParams struct {
	Logger    *logger.Logger
	Bookings  bookingExpirer
	TTL       time.Duration
	BatchSize int
}

type bookingExpirer interface {
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	Expire(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// NewBookingExpiryJob builds the job that cancels bookings left pending
// longer than the TTL and returns their seats to the pool.
func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &bookingExpiryJob{
		logg:     params.Logger,
		bookings: params.Bookings,
		ttl:      ttl,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type bookingExpiryJob struct {
	logg     *logger.Logger
	bookings bookingExpirer
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

func (j *bookingExpiryJob) Name() string { return "booking-expiry" }

// Run expires one batch per cycle. Each booking is expired in its own
// transaction so one failure does not hold back the rest.
func (j *bookingExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.ttl)
	pending, err := j.bookings.PendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("load pending bookings: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for _, booking := range pending {
		ok, err := j.bookings.Expire(ctx, booking.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire booking %s: %w", booking.ID, err))
			continue
		}
		if ok {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(pending),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "pending booking sweep complete")
	return errs
}
