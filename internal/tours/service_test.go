package tours

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
)

func TestValidatePolicy(t *testing.T) {
	cases := []struct {
		name   string
		policy models.CommissionPolicy
		ok     bool
	}{
		{"percentage", models.CommissionPolicy{CommissionType: enums.CommissionTypePercentage, CommissionRate: decimal.NewFromInt(10), MaxLevels: 2}, true},
		{"percentage full", models.CommissionPolicy{CommissionType: enums.CommissionTypePercentage, CommissionRate: decimal.NewFromInt(100)}, true},
		{"percentage zero", models.CommissionPolicy{CommissionType: enums.CommissionTypePercentage}, false},
		{"percentage over", models.CommissionPolicy{CommissionType: enums.CommissionTypePercentage, CommissionRate: decimal.NewFromFloat(100.5)}, false},
		{"fixed", models.CommissionPolicy{CommissionType: enums.CommissionTypeFixed, FixedAmount: decimal.NewFromInt(25), MaxLevels: 50}, true},
		{"fixed zero", models.CommissionPolicy{CommissionType: enums.CommissionTypeFixed}, false},
		{"too many levels", models.CommissionPolicy{CommissionType: enums.CommissionTypeFixed, FixedAmount: decimal.NewFromInt(1), MaxLevels: 51}, false},
		{"negative levels", models.CommissionPolicy{CommissionType: enums.CommissionTypeFixed, FixedAmount: decimal.NewFromInt(1), MaxLevels: -1}, false},
		{"unknown type", models.CommissionPolicy{CommissionType: "tiered"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePolicy(tc.policy)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateAndGetPackage(t *testing.T) {
	client := dbtest.Open(t, "tours")
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, enums.CurrencyUSD)
	require.NoError(t, err)
	ctx := context.Background()

	notes := "paid after departure"
	pkg, err := svc.CreatePackage(ctx, CreatePackageInput{
		Name:            "  Palawan Island Hopping ",
		Currency:        enums.CurrencyPHP,
		CommissionType:  enums.CommissionTypePercentage,
		CommissionRate:  decimal.NewFromInt(10),
		MaxLevels:       2,
		CommissionNotes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Palawan Island Hopping", pkg.Name)

	loaded, err := svc.GetPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CommissionTypePercentage, loaded.Policy.CommissionType)
	assert.True(t, loaded.Policy.CommissionRate.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2, loaded.Policy.MaxLevels)
	require.NotNil(t, loaded.Policy.CommissionNotes)
	assert.Equal(t, notes, *loaded.Policy.CommissionNotes)

	_, err = svc.GetPackage(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.CreatePackage(ctx, CreatePackageInput{Name: "x", Currency: "GBP", CommissionType: enums.CommissionTypeFixed, FixedAmount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreatePackage(ctx, CreatePackageInput{Currency: enums.CurrencyUSD})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	date := &models.TourDate{PackageID: pkg.ID, DepartureDate: time.Now().Add(72 * time.Hour).UTC(), Price: decimal.NewFromInt(100), TotalSeats: 4}
	require.NoError(t, repo.CreateTourDate(ctx, date))

	gotDate, err := svc.GetTourDate(ctx, date.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, gotDate.TotalSeats)

	dates, err := svc.ListTourDates(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Len(t, dates, 1)

	_, err = svc.GetTourDate(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreatePackageDefaultsCurrency(t *testing.T) {
	client := dbtest.Open(t, "tours_currency")
	svc, err := NewService(NewRepository(client.DB()), enums.CurrencyPHP)
	require.NoError(t, err)

	pkg, err := svc.CreatePackage(context.Background(), CreatePackageInput{
		Name:           "Bohol Countryside",
		CommissionType: enums.CommissionTypeFixed,
		FixedAmount:    decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CurrencyPHP, pkg.Currency)

	_, err = NewService(NewRepository(client.DB()), enums.Currency("XYZ"))
	assert.Error(t, err)
}
