package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourlink-backend/internal/bookings"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryRedis struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
	err    error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

func (m *memoryRedis) Ping(context.Context) error { return m.err }

type stubLedger struct {
	inventory.Ledger
	summary *inventory.SeatSummary
}

func (s stubLedger) SeatSummary(_ context.Context, id uuid.UUID) (*inventory.SeatSummary, error) {
	out := *s.summary
	out.TourDateID = id
	return &out, nil
}

type stubBookings struct {
	bookings.Service
	mu      sync.Mutex
	created int
	booking *models.Booking
}

func (s *stubBookings) CreateBooking(_ context.Context, input bookings.CreateBookingInput) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return &models.Booking{
		ID:           uuid.New(),
		ResellerID:   input.ResellerID,
		TourDateID:   input.TourDateID,
		SeatCount:    input.SeatCount,
		Status:       enums.BookingStatusPending,
		CustomerName: input.Customer.Name,
	}, nil
}

func (s *stubBookings) Get(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	b := *s.booking
	b.ID = id
	return &b, nil
}

type routerFixture struct {
	handler  http.Handler
	redis    *memoryRedis
	bookings *stubBookings
}

func newRouterFixture(t *testing.T, dbErr error) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		HTTP: config.HTTPConfig{
			AllowedOrigins:    []string{"http://localhost:3000"},
			RateLimitWindow:   time.Minute,
			RateLimitRequests: 100,
		},
		Eventing: config.EventingConfig{HTTPIdempotencyTTL: time.Hour},
	}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	metrics.NewEngineMetrics(reg).IncBookingTransition("pending")

	store := newMemoryRedis()
	svc := &stubBookings{booking: &models.Booking{ResellerID: uuid.New(), Status: enums.BookingStatusPending}}
	handler := NewRouter(
		cfg,
		logg,
		stubPinger{err: dbErr},
		store,
		reg,
		nil,
		nil,
		nil,
		stubLedger{summary: &inventory.SeatSummary{Total: 10, Available: 7, Reserved: 2, Booked: 1}},
		svc,
		nil,
	)
	return routerFixture{handler: handler, redis: store, bookings: svc}
}

func (f routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	f := newRouterFixture(t, nil)

	live := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-Tourlink-Env"))

	ready := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.NotEmpty(t, ready.Header().Get("X-Request-Id"))
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	f := newRouterFixture(t, errors.New("connection refused"))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var payload struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "connection refused", payload.Error.Details["postgres"])
	assert.NotContains(t, payload.Error.Details, "redis")
}

func TestMetricsEndpointExportsEngineCounters(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking")
}

func TestTourDateSeatsRoute(t *testing.T) {
	f := newRouterFixture(t, nil)
	id := uuid.New()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/tour-dates/"+id.String()+"/seats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data inventory.SeatSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, id, envelope.Data.TourDateID)
	assert.Equal(t, 7, envelope.Data.Available)
}

func TestBookingCreateRequiresIdempotencyKey(t *testing.T) {
	f := newRouterFixture(t, nil)
	body := fmt.Sprintf(`{"reseller_id":%q,"tour_date_id":%q,"seat_count":2,"customer_name":"Ana"}`, uuid.NewString(), uuid.NewString())

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.bookings.created)
}

func TestBookingCreateReplaysOnRetry(t *testing.T) {
	f := newRouterFixture(t, nil)
	body := fmt.Sprintf(`{"reseller_id":%q,"tour_date_id":%q,"seat_count":2,"customer_name":"Ana"}`, uuid.NewString(), uuid.NewString())

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "booking-1")
		rec := f.do(req)
		require.Equal(t, http.StatusCreated, rec.Code)
		if i == 0 {
			first = rec.Body.String()
			continue
		}
		assert.Equal(t, first, rec.Body.String())
	}
	assert.Equal(t, 1, f.bookings.created)
}

func TestBookingRoutesEnforceActingReseller(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), nil)
	req.Header.Set("X-Reseller-Id", uuid.NewString())
	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), nil)
	owner.Header.Set("X-Reseller-Id", f.bookings.booking.ResellerID.String())
	assert.Equal(t, http.StatusOK, f.do(owner).Code)
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.redis.counts["api:10.1.1.1"] = 100

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tour-dates/"+uuid.NewString()+"/seats", nil)
	req.Header.Set("X-Forwarded-For", "10.1.1.1")
	rec := f.do(req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMissingServicesReturnInternalError(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/resellers/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
