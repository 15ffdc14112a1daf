// Package idempotency records which event IDs a consumer has already handled.
package idempotency

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourlink-backend/pkg/redis"
)

var ErrInvalidMarker = errors.New("marker needs a consumer name and an event id")

// Manager claims `<consumer>:<event_id>` markers in Redis with SETNX. The
// outbox publisher uses it to avoid re-sending a row whose publish succeeded
// but whose published_at update was lost; subscribers use it to apply each
// event once. A zero TTL keeps markers until deleted.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("marker ttl must not be negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed claims the marker. It reports true when the marker
// already existed, meaning the caller should skip the event.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	stamp := strconv.FormatInt(m.now().UnixMilli(), 10)
	claimed, err := m.store.SetNX(ctx, key, stamp, m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Delete drops the marker so a failed attempt can be retried.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" || eventID == uuid.Nil {
		return "", ErrInvalidMarker
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
