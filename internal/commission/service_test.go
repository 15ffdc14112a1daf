package commission

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/pagination"
)

type fakeWalker struct {
	chain    []models.ResellerNode
	maxDepth int
	calls    int
}

func (f *fakeWalker) UplineChain(_ context.Context, _ *gorm.DB, _ uuid.UUID, maxDepth int) ([]models.ResellerNode, error) {
	f.calls++
	f.maxDepth = maxDepth
	if maxDepth < len(f.chain) {
		return f.chain[:maxDepth], nil
	}
	return f.chain, nil
}

type fixture struct {
	client *db.Client
	engine Engine
	walker *fakeWalker
	owner  *models.ResellerNode
	date   *models.TourDate
	pkg    *models.TourPackage
}

func newFixture(t *testing.T, maxLevels int) fixture {
	t.Helper()
	client := dbtest.Open(t, "commission")
	logg := logger.New(logger.Options{ServiceName: "commission-test", Output: io.Discard})

	owner := node("10", "3")
	walker := &fakeWalker{chain: []models.ResellerNode{node("10", "3"), node("10", "3"), node("10", "3")}}
	engine, err := NewEngine(NewRepository(client.DB()), walker, metrics.NewEngineMetrics(prometheus.NewRegistry()), logg)
	require.NoError(t, err)

	pkg := &models.TourPackage{
		ID:       uuid.New(),
		Currency: enums.CurrencyUSD,
		Policy: models.CommissionPolicy{
			CommissionType: enums.CommissionTypePercentage,
			CommissionRate: dec("10"),
			MaxLevels:      maxLevels,
		},
	}
	date := &models.TourDate{ID: uuid.New(), PackageID: pkg.ID, Price: dec("100"), TotalSeats: 10}
	return fixture{client: client, engine: engine, walker: walker, owner: &owner, date: date, pkg: pkg}
}

func (f fixture) booking(seats int) *models.Booking {
	return &models.Booking{ID: uuid.New(), ResellerID: f.owner.ID, TourDateID: f.date.ID, SeatCount: seats}
}

func (f fixture) distribute(b *models.Booking) (*Distribution, error) {
	ctx := context.Background()
	var result *Distribution
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		d, err := f.engine.Distribute(ctx, tx, DistributeInput{Booking: b, TourDate: f.date, Package: f.pkg, Owner: f.owner})
		result = d
		return err
	})
	return result, err
}

func TestDistributeCreatesPendingRecords(t *testing.T) {
	f := newFixture(t, 2)
	b := f.booking(2)

	dist, err := f.distribute(b)
	require.NoError(t, err)
	assert.True(t, dist.BaseAmount.Equal(dec("20")))
	assert.True(t, dist.Total.Equal(dec("3.20")))
	assert.Equal(t, 2, f.walker.maxDepth)

	records, err := f.engine.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	wantBeneficiaries := []uuid.UUID{f.owner.ID, f.walker.chain[0].ID, f.walker.chain[1].ID}
	wantAmounts := []string{"2", "0.6", "0.6"}
	for i, rec := range records {
		assert.Equal(t, i, rec.Level)
		assert.Equal(t, wantBeneficiaries[i], rec.BeneficiaryResellerID)
		assert.True(t, rec.Amount.Equal(dec(wantAmounts[i])), "level %d amount %s", i, rec.Amount)
		assert.True(t, rec.BaseAmount.Equal(dec("20")))
		assert.Equal(t, enums.CommissionStatusPending, rec.Status)
		assert.Equal(t, enums.CurrencyUSD, rec.Currency)
	}
}

func TestDistributeTwiceIsRejected(t *testing.T) {
	f := newFixture(t, 2)
	b := f.booking(1)

	_, err := f.distribute(b)
	require.NoError(t, err)

	_, err = f.distribute(b)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	records, err := f.engine.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDistributeFlatPayoutSkipsWalk(t *testing.T) {
	f := newFixture(t, 0)
	b := f.booking(3)

	dist, err := f.distribute(b)
	require.NoError(t, err)
	require.Len(t, dist.Records, 1)
	assert.True(t, dist.Records[0].Amount.Equal(dec("30")))
	assert.Zero(t, f.walker.calls)
}

func TestDistributeValidatesInput(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.engine.Distribute(ctx, tx, DistributeInput{Booking: f.booking(1)})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stranger := &models.Booking{ID: uuid.New(), ResellerID: uuid.New(), SeatCount: 1}
	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.engine.Distribute(ctx, tx, DistributeInput{Booking: stranger, TourDate: f.date, Package: f.pkg, Owner: f.owner})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.engine.Distribute(ctx, nil, DistributeInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestVoidMarksAllRecords(t *testing.T) {
	f := newFixture(t, 2)
	b := f.booking(2)
	_, err := f.distribute(b)
	require.NoError(t, err)
	ctx := context.Background()

	var voided int
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := f.engine.Void(ctx, tx, b.ID)
		voided = n
		return err
	}))
	assert.Equal(t, 3, voided)

	records, err := f.engine.ListByBooking(ctx, b.ID)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, enums.CommissionStatusVoided, rec.Status)
		assert.NotNil(t, rec.VoidedAt)
	}

	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := f.engine.Void(ctx, tx, b.ID)
		voided = n
		return err
	}))
	assert.Zero(t, voided)
}

func TestListByBeneficiaryPaginates(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.distribute(f.booking(1))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := f.engine.ListByBeneficiary(ctx, f.owner.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.engine.ListByBeneficiary(ctx, f.owner.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, rec := range append(first.Items, second.Items...) {
		assert.False(t, seen[rec.ID], "record returned twice")
		seen[rec.ID] = true
	}

	_, err = f.engine.ListByBeneficiary(ctx, f.owner.ID, pagination.Params{Cursor: "not-base64!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	empty, err := f.engine.ListByBeneficiary(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}
