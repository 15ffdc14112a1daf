package bookings

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourlink-backend/internal/commission"
	"github.com/angelmondragon/tourlink-backend/internal/hierarchy"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/internal/referral"
	"github.com/angelmondragon/tourlink-backend/internal/tours"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
)

type fixture struct {
	client    *db.Client
	svc       Service
	hierarchy hierarchy.Service
	ledger    inventory.Ledger
	pkg       *models.TourPackage
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t, "bookings")
	logg := logger.New(logger.Options{ServiceName: "bookings-test", Output: io.Discard})
	m := metrics.NewEngineMetrics(prometheus.NewRegistry())
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)

	dir, err := referral.NewDirectory(referral.NewRepository(client.DB()), config.ReferralConfig{CodeLength: 8, RetryBudget: 20}, logg)
	require.NoError(t, err)
	hierRepo := hierarchy.NewRepository(client.DB())
	hier, err := hierarchy.NewService(client, hierRepo, dir, emitter, config.HierarchyConfig{MaxWalkHops: 100}, logg)
	require.NoError(t, err)

	catalog := tours.NewRepository(client.DB())
	ledger, err := inventory.NewLedger(client, inventory.NewRepository(client.DB()), catalog, emitter, m, logg)
	require.NoError(t, err)
	engine, err := commission.NewEngine(commission.NewRepository(client.DB()), hier, m, logg)
	require.NoError(t, err)

	svc, err := NewService(Dependencies{
		Tx:          client,
		Repo:        NewRepository(client.DB()),
		Resellers:   hierRepo,
		Catalog:     catalog,
		Ledger:      ledger,
		Commissions: engine,
		Outbox:      emitter,
		Metrics:     m,
		Logger:      logg,
	}, config.BookingConfig{MaxSeats: 10})
	require.NoError(t, err)

	pkg := &models.TourPackage{
		Name:     "Palawan Island Hopping",
		Currency: enums.CurrencyUSD,
		Policy: models.CommissionPolicy{
			CommissionType: enums.CommissionTypePercentage,
			CommissionRate: decimal.NewFromInt(10),
			MaxLevels:      2,
		},
	}
	require.NoError(t, client.DB().Create(pkg).Error)

	return fixture{client: client, svc: svc, hierarchy: hier, ledger: ledger, pkg: pkg}
}

func (f fixture) tourDate(t *testing.T, seats int) *models.TourDate {
	t.Helper()
	date, err := f.ledger.CreateTourDate(context.Background(), inventory.CreateTourDateInput{
		PackageID:     f.pkg.ID,
		DepartureDate: time.Now().Add(14 * 24 * time.Hour),
		Price:         decimal.NewFromInt(100),
		TotalSeats:    seats,
	})
	require.NoError(t, err)
	return date
}

// chain registers S2 <- S1 <- owner and activates the owner.
func (f fixture) chain(t *testing.T) (owner, s1, s2 *models.ResellerNode) {
	t.Helper()
	ctx := context.Background()
	var err error
	s2, err = f.hierarchy.Register(ctx, hierarchy.RegisterInput{ResellerID: uuid.New()})
	require.NoError(t, err)
	s1, err = f.hierarchy.Register(ctx, hierarchy.RegisterInput{ResellerID: uuid.New(), SponsorReferralCode: s2.ReferralCode})
	require.NoError(t, err)
	owner, err = f.hierarchy.Register(ctx, hierarchy.RegisterInput{ResellerID: uuid.New(), SponsorReferralCode: s1.ReferralCode})
	require.NoError(t, err)
	owner, err = f.hierarchy.SetStatus(ctx, owner.ID, enums.ResellerStatusActive)
	require.NoError(t, err)
	return owner, s1, s2
}

func (f fixture) outboxTypes(t *testing.T, aggregateID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.client.DB().Where("aggregate_id = ?", aggregateID).Find(&rows).Error)
	types := make([]enums.OutboxEventType, len(rows))
	for i, row := range rows {
		types[i] = row.EventType
	}
	return types
}

func TestBookingLifecycleDistributesAndVoids(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, s1, s2 := f.chain(t)
	date := f.tourDate(t, 5)

	booking, err := f.svc.CreateBooking(ctx, CreateBookingInput{
		ResellerID: owner.ID,
		TourDateID: date.ID,
		SeatCount:  2,
		Customer:   Customer{Name: "Maria Santos"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusPending, booking.Status)
	assert.Len(t, booking.SeatSlotIDs, 2)

	remaining, err := f.ledger.RemainingSeats(ctx, date.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	confirmed, err := f.svc.Confirm(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	records, err := f.svc.Commissions(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	expected := []struct {
		beneficiary uuid.UUID
		amount      string
	}{
		{owner.ID, "2.00"},
		{s1.ID, "0.60"},
		{s2.ID, "0.60"},
	}
	for i, want := range expected {
		assert.Equal(t, i, records[i].Level)
		assert.Equal(t, want.beneficiary, records[i].BeneficiaryResellerID)
		assert.Equal(t, want.amount, records[i].Amount.StringFixed(2))
		assert.Equal(t, "20.00", records[i].BaseAmount.StringFixed(2))
		assert.Equal(t, enums.CommissionStatusPending, records[i].Status)
	}

	summary, err := f.ledger.SeatSummary(ctx, date.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Booked)
	assert.Equal(t, 3, summary.Available)

	cancelled, err := f.svc.Cancel(ctx, booking.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "customer request", *cancelled.CancelReason)

	records, err = f.svc.Commissions(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, enums.CommissionStatusVoided, rec.Status)
		assert.NotNil(t, rec.VoidedAt)
	}

	remaining, err = f.ledger.RemainingSeats(ctx, date.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventBookingCreated,
		enums.EventBookingConfirmed,
		enums.EventCommissionsDistributed,
		enums.EventCommissionsVoided,
		enums.EventBookingCancelled,
	}, f.outboxTypes(t, booking.ID))
}

func TestConfirmTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _, _ := f.chain(t)
	date := f.tourDate(t, 3)

	booking, err := f.svc.CreateBooking(ctx, CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 1, Customer: Customer{Name: "Ana"}})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, booking.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, booking.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.CommissionRecord{}).Where("booking_id = ?", booking.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestCancelPendingSkipsVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _, _ := f.chain(t)
	date := f.tourDate(t, 3)

	booking, err := f.svc.CreateBooking(ctx, CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 3, Customer: Customer{Name: "Ana"}})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, booking.ID, "")
	require.NoError(t, err)

	records, err := f.svc.Commissions(ctx, booking.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = f.svc.Confirm(ctx, booking.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Cancel(ctx, booking.ID, "again")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventBookingCreated,
		enums.EventBookingCancelled,
	}, f.outboxTypes(t, booking.ID))
}

func TestCreateBookingRejectsInactiveReseller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending, err := f.hierarchy.Register(ctx, hierarchy.RegisterInput{ResellerID: uuid.New()})
	require.NoError(t, err)
	date := f.tourDate(t, 3)

	_, err = f.svc.CreateBooking(ctx, CreateBookingInput{ResellerID: pending.ID, TourDateID: date.ID, SeatCount: 1, Customer: Customer{Name: "Ana"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	remaining, err := f.ledger.RemainingSeats(ctx, date.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _, _ := f.chain(t)
	date := f.tourDate(t, 3)

	cases := []struct {
		name  string
		input CreateBookingInput
		code  pkgerrors.Code
	}{
		{"zero seats", CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 0, Customer: Customer{Name: "Ana"}}, pkgerrors.CodeValidation},
		{"above max seats", CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 11, Customer: Customer{Name: "Ana"}}, pkgerrors.CodeValidation},
		{"missing customer", CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 1, Customer: Customer{Name: "  "}}, pkgerrors.CodeValidation},
		{"unknown reseller", CreateBookingInput{ResellerID: uuid.New(), TourDateID: date.ID, SeatCount: 1, Customer: Customer{Name: "Ana"}}, pkgerrors.CodeNotFound},
		{"unknown tour date", CreateBookingInput{ResellerID: owner.ID, TourDateID: uuid.New(), SeatCount: 1, Customer: Customer{Name: "Ana"}}, pkgerrors.CodeNotFound},
		{"not enough seats", CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 4, Customer: Customer{Name: "Ana"}}, pkgerrors.CodeInsufficientInventory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExpireOnlyTouchesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _, _ := f.chain(t)
	date := f.tourDate(t, 4)

	stale, err := f.svc.CreateBooking(ctx, CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 2, Customer: Customer{Name: "Ana"}})
	require.NoError(t, err)
	kept, err := f.svc.CreateBooking(ctx, CreateBookingInput{ResellerID: owner.ID, TourDateID: date.ID, SeatCount: 1, Customer: Customer{Name: "Ben"}})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, kept.ID)
	require.NoError(t, err)

	pending, err := f.svc.PendingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)

	expired, err := f.svc.Expire(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = f.svc.Expire(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = f.svc.Expire(ctx, kept.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	got, err := f.svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, ReasonExpired, *got.CancelReason)

	remaining, err := f.ledger.RemainingSeats(ctx, date.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestGetUnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
