package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

type fakeBookingExpirer struct {
	pending    []models.Booking
	cutoff     time.Time
	limit      int
	expired    []uuid.UUID
	failFor    uuid.UUID
	alreadyFor uuid.UUID
	listErr    error
}

func (f *fakeBookingExpirer) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.pending, f.listErr
}

func (f *fakeBookingExpirer) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == f.failFor {
		return false, errors.New("db down")
	}
	if id == f.alreadyFor {
		return false, nil
	}
	f.expired = append(f.expired, id)
	return true, nil
}

func newBookingExpiryJob(t *testing.T, fake *fakeBookingExpirer) *bookingExpiryJob {
	t.Helper()
	jobIface, err := NewBookingExpiryJob(BookingExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Bookings: fake,
		TTL:      2 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewBookingExpiryJob: %v", err)
	}
	return jobIface.(*bookingExpiryJob)
}

func TestBookingExpiryJobUsesTTLCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeBookingExpirer{}
	job := newBookingExpiryJob(t, fake)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-2 * time.Hour); !fake.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, fake.cutoff)
	}
	if fake.limit != defaultExpiryBatchSize {
		t.Fatalf("expected limit %d, got %d", defaultExpiryBatchSize, fake.limit)
	}
}

func TestBookingExpiryJobContinuesPastFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	fake := &fakeBookingExpirer{
		pending:    []models.Booking{{ID: a}, {ID: b}, {ID: c}},
		failFor:    a,
		alreadyFor: b,
	}
	job := newBookingExpiryJob(t, fake)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(fake.expired) != 1 || fake.expired[0] != c {
		t.Fatalf("expected only %s expired, got %v", c, fake.expired)
	}
}

func TestBookingExpiryJobListError(t *testing.T) {
	fake := &fakeBookingExpirer{listErr: errors.New("boom")}
	job := newBookingExpiryJob(t, fake)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewBookingExpiryJobRequiresService(t *testing.T) {
	_, err := NewBookingExpiryJob(BookingExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard})})
	if err == nil {
		t.Fatal("expected error")
	}
}
