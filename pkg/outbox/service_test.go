package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

type bookingPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	Seats     int       `json:"seats"`
}

func newTestService(t *testing.T) (*Service, *Repository, *gorm.DB) {
	t.Helper()
	client := dbtest.Open(t, "outbox")
	repo := NewRepository(client.DB())
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(repo, logg), repo, client.DB()
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, _, conn := newTestService(t)
	bookingID := uuid.New()
	resellerID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   bookingID,
			Actor:         &ActorRef{ResellerID: &resellerID, Source: "api"},
			Data:          bookingPayload{BookingID: bookingID, Seats: 2},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventBookingCreated, rows[0].EventType)
	assert.Equal(t, bookingID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, resellerID, *envelope.Actor.ResellerID)

	var data bookingPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, 2, data.Seats)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventBookingCreated,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	svc, _, conn := newTestService(t)
	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     "order_created",
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	svc, _, conn := newTestService(t)
	bookingID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventBookingExpired,
		AggregateType: enums.AggregateBooking,
		AggregateID:   bookingID,
		Data:          bookingPayload{BookingID: bookingID},
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, svc.EmitIfNotExists(context.Background(), conn, event))
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	_, repo, conn := newTestService(t)

	first := models.OutboxEvent{
		EventType:     enums.EventBookingConfirmed,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
	second := first
	second.AggregateID = uuid.New()
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	terminalID := rows[1].ID
	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkTerminalTx(conn, terminalID, errors.New("bad payload"), 3))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	var terminal models.OutboxEvent
	require.NoError(t, conn.First(&terminal, "id = ?", terminalID).Error)
	assert.Equal(t, 3, terminal.AttemptCount)
	require.NotNil(t, terminal.LastError)
	assert.Equal(t, "bad payload", *terminal.LastError)
}

func TestRepositoryMarkFailedIncrementsAttempts(t *testing.T) {
	_, repo, conn := newTestService(t)
	event := models.OutboxEvent{
		EventType:     enums.EventBookingCancelled,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, event))

	rows, err := repo.FetchUnpublishedForPublish(conn, 1, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("timeout")))
	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("timeout")))

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", rows[0].ID).Error)
	assert.Equal(t, 2, reloaded.AttemptCount)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	_, repo, conn := newTestService(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	older := old.Add(-time.Hour)
	for _, publishedAt := range []*time.Time{&older, &old, &recent, nil} {
		row := models.OutboxEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   publishedAt,
		}
		require.NoError(t, conn.Create(&row).Error)
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, cutoff, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var survivor models.OutboxEvent
	require.NoError(t, conn.Where("published_at IS NOT NULL AND published_at < ?", cutoff).First(&survivor).Error)
	require.NotNil(t, survivor.PublishedAt)
	assert.WithinDuration(t, old, *survivor.PublishedAt, time.Second, "oldest row goes first")

	deleted, err = repo.DeletePublishedBefore(context.Background(), nil, cutoff, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}
