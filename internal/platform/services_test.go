package platform_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourlink-backend/api/controllers"
	"github.com/angelmondragon/tourlink-backend/api/routes"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/internal/platform"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Env: "test"},
		HTTP:       config.HTTPConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Referral:   config.ReferralConfig{CodeLength: 8, RetryBudget: 20},
		Hierarchy:  config.HierarchyConfig{MaxWalkHops: 100, DefaultOwnCommissionRate: "10.00", DefaultUplineCommissionRate: "3.00"},
		Booking:    config.BookingConfig{PendingTTL: 48 * time.Hour, MaxSeats: 10},
		Commission: config.CommissionConfig{DefaultCurrency: "usd"},
	}
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (c apiClient) call(method, path, actor string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set("X-Reseller-Id", actor)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		envelope := struct {
			Data any `json:"data"`
		}{Data: out}
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	}
	return rec.Code
}

func TestNewServicesRequiresDependencies(t *testing.T) {
	_, err := platform.NewServices(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	client := dbtest.Open(t, "platform")
	logg := logger.New(logger.Options{ServiceName: "platform-test", Output: io.Discard})
	cfg := testConfig()
	reg := prometheus.NewRegistry()

	svc, err := platform.NewServices(cfg, client, reg, logg)
	require.NoError(t, err)

	api := apiClient{t: t, handler: routes.NewRouter(
		cfg, logg, client, nil, reg,
		svc.Hierarchy, svc.Referrals, svc.Catalog, svc.Ledger, svc.Bookings, svc.Commissions,
	)}

	sponsorID, sellerID := uuid.New(), uuid.New()
	var sponsor, seller controllers.ResellerDTO
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/resellers", "", map[string]any{"reseller_id": sponsorID}, &sponsor))
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/resellers", "", map[string]any{
		"reseller_id":           sellerID,
		"sponsor_referral_code": sponsor.ReferralCode,
	}, &seller))
	require.NotNil(t, seller.SponsorID)
	assert.Equal(t, sponsorID, *seller.SponsorID)
	assert.Equal(t, sponsorID, seller.GroupRootID)

	var lookup map[string]any
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/referral-codes/"+sponsor.ReferralCode, "", nil, &lookup))
	assert.Equal(t, sponsorID.String(), lookup["reseller_id"])

	require.Equal(t, http.StatusOK, api.call(http.MethodPost, fmt.Sprintf("/api/v1/resellers/%s/status", sellerID), "", map[string]any{"status": "active"}, nil))

	var pkg controllers.PackageDTO
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/packages", "", map[string]any{
		"name":            "Siargao Surf Week",
		"currency":        "USD",
		"commission_type": "percentage",
		"commission_rate": "10",
		"max_levels":      2,
	}, &pkg))

	var date controllers.TourDateDTO
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/tour-dates", "", map[string]any{
		"package_id":     pkg.ID,
		"departure_date": "2026-12-01T00:00:00Z",
		"price":          "100.00",
		"total_seats":    5,
	}, &date))

	var booking controllers.BookingDTO
	require.Equal(t, http.StatusCreated, api.call(http.MethodPost, "/api/v1/bookings", sellerID.String(), map[string]any{
		"tour_date_id":  date.ID,
		"seat_count":    2,
		"customer_name": "Ana Reyes",
	}, &booking))
	assert.Equal(t, "pending", booking.Status)
	assert.Len(t, booking.SeatSlotIDs, 2)

	assert.Equal(t, http.StatusForbidden, api.call(http.MethodPost, "/api/v1/bookings/"+booking.ID.String()+"/confirm", sponsorID.String(), nil, nil))
	require.Equal(t, http.StatusOK, api.call(http.MethodPost, "/api/v1/bookings/"+booking.ID.String()+"/confirm", sellerID.String(), nil, &booking))
	assert.Equal(t, "confirmed", booking.Status)

	var records []controllers.CommissionDTO
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/bookings/"+booking.ID.String()+"/commissions", "", nil, &records))
	require.Len(t, records, 2)
	amounts := map[int]string{}
	for _, r := range records {
		amounts[r.Level] = r.Amount
		assert.Equal(t, "20.00", r.BaseAmount)
	}
	assert.Equal(t, map[int]string{0: "2.00", 1: "0.60"}, amounts)

	var page controllers.CommissionPageDTO
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, fmt.Sprintf("/api/v1/resellers/%s/commissions", sponsorID), "", nil, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Items[0].Level)

	var seats inventory.SeatSummary
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/tour-dates/"+date.ID.String()+"/seats", "", nil, &seats))
	assert.Equal(t, 5, seats.Total)
	assert.Equal(t, 2, seats.Booked)
	assert.Equal(t, 3, seats.Available)

	require.Equal(t, http.StatusOK, api.call(http.MethodPost, "/api/v1/bookings/"+booking.ID.String()+"/cancel", sellerID.String(), map[string]any{"reason": "weather"}, &booking))
	assert.Equal(t, "cancelled", booking.Status)

	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/bookings/"+booking.ID.String()+"/commissions", "", nil, &records))
	for _, r := range records {
		assert.Equal(t, "voided", r.Status)
	}
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, "/api/v1/tour-dates/"+date.ID.String()+"/seats", "", nil, &seats))
	assert.Equal(t, 5, seats.Available)

	var downline []controllers.ResellerDTO
	require.Equal(t, http.StatusOK, api.call(http.MethodGet, fmt.Sprintf("/api/v1/resellers/%s/downline", sponsorID), "", nil, &downline))
	require.Len(t, downline, 1)
	assert.Equal(t, sellerID, downline[0].ID)
}
