package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
)

// memoryStore mimics the Redis commands the middleware issues.
type memoryStore struct {
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := m.data[key]; taken {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "mem:" + scope + ":" + id
}

// routedPost builds a POST whose chi route pattern is already resolved.
func routedPost(pattern, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, pattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func serve(store *memoryStore, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Idempotency(store, 0, nil)(h).ServeHTTP(rec, req)
	return rec
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		method, pattern string
		want            time.Duration
		ok              bool
	}{
		{http.MethodPost, "/api/v1/bookings", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/bookings/{bookingId}/confirm", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/bookings/123/cancel", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/resellers", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/resellers/abc/status", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/tour-dates", defaultIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/bookings/123", 0, false},
		{http.MethodPost, "/api/v1/unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.pattern, func(t *testing.T) {
			ttl, ok := routeTTL(tt.method, tt.pattern, defaultIdempotencyTTL)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, ttl)
			}
		})
	}

	ttl, ok := routeTTL(http.MethodPost, "/api/v1/bookings", 30*24*time.Hour)
	assert.True(t, ok)
	assert.Equal(t, 30*24*time.Hour, ttl, "a longer configured ttl wins")
}

func TestIdempotencyRequiresKey(t *testing.T) {
	ran := false
	rec := serve(newMemoryStore(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ran = true
	}), routedPost("/api/v1/resellers", "", `{"reseller_id":"x"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, ran)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	first := serve(store, handler, routedPost("/api/v1/resellers", "abc", `{"reseller_id":"x"}`))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	again := serve(store, handler, routedPost("/api/v1/resellers", "abc", `{"reseller_id":"x"}`))
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.Equal(t, "true", again.Header().Get(ReplayedHeader))
	assert.JSONEq(t, `{"ok":true}`, again.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := newMemoryStore()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	serve(store, ok, routedPost("/api/v1/resellers", "xyz", `{"reseller_id":"a"}`))
	rec := serve(store, ok, routedPost("/api/v1/resellers", "xyz", `{"reseller_id":"b"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	unavailable := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		serve(store, unavailable, routedPost("/api/v1/bookings", "retry-me", `{"seat_count":1}`))
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newMemoryStore()
	const body = `{"seat_count":2}`

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// a retry arrives while the first request still runs
		inner = serve(store, http.NotFoundHandler(), routedPost("/api/v1/bookings", "dup-key", body))
		w.WriteHeader(http.StatusCreated)
	})

	rec := serve(store, handler, routedPost("/api/v1/bookings", "dup-key", body))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)

	again := serve(store, handler, routedPost("/api/v1/bookings", "dup-key", body))
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(ReplayedHeader))
}

func TestIdempotencyIgnoresUnlistedRoutes(t *testing.T) {
	store := newMemoryStore()
	rec := serve(store, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), routedPost("/api/v1/unknown", "", `{}`))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.data)
}
