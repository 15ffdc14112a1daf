package tours

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
)

// MaxCommissionLevels bounds how deep a package may pay out.
const MaxCommissionLevels = 50

var hundred = decimal.NewFromInt(100)

// Service exposes the catalog entities the booking engine reads. Packages
// have no update path: a policy is fixed once bookings may reference it.
type Service interface {
	CreatePackage(ctx context.Context, input CreatePackageInput) (*models.TourPackage, error)
	GetPackage(ctx context.Context, id uuid.UUID) (*models.TourPackage, error)
	GetTourDate(ctx context.Context, id uuid.UUID) (*models.TourDate, error)
	ListTourDates(ctx context.Context, packageID uuid.UUID) ([]models.TourDate, error)
}

// CreatePackageInput describes a package and its commission policy. An empty
// currency falls back to the service default.
type CreatePackageInput struct {
	Name            string
	Currency        enums.Currency
	CommissionType  enums.CommissionType
	CommissionRate  decimal.Decimal
	FixedAmount     decimal.Decimal
	MaxLevels       int
	CommissionNotes *string
}

type service struct {
	repo            Repository
	defaultCurrency enums.Currency
}

// NewService wires the catalog service.
func NewService(repo Repository, defaultCurrency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tours repository required")
	}
	if !defaultCurrency.IsValid() {
		return nil, fmt.Errorf("invalid default currency %q", defaultCurrency)
	}
	return &service{repo: repo, defaultCurrency: defaultCurrency}, nil
}

// ValidatePolicy checks a commission policy in isolation.
func ValidatePolicy(policy models.CommissionPolicy) error {
	switch policy.CommissionType {
	case enums.CommissionTypePercentage:
		if !policy.CommissionRate.IsPositive() || policy.CommissionRate.GreaterThan(hundred) {
			return pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be greater than 0 and at most 100")
		}
	case enums.CommissionTypeFixed:
		if !policy.FixedAmount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed commission amount must be positive")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown commission type")
	}
	if policy.MaxLevels < 0 || policy.MaxLevels > MaxCommissionLevels {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("max levels must be between 0 and %d", MaxCommissionLevels))
	}
	return nil
}

func (s *service) CreatePackage(ctx context.Context, input CreatePackageInput) (*models.TourPackage, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package name required")
	}
	if input.Currency == "" {
		input.Currency = s.defaultCurrency
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	policy := models.CommissionPolicy{
		CommissionType:  input.CommissionType,
		CommissionRate:  input.CommissionRate.Round(2),
		FixedAmount:     input.FixedAmount.Round(2),
		MaxLevels:       input.MaxLevels,
		CommissionNotes: input.CommissionNotes,
	}
	if err := ValidatePolicy(policy); err != nil {
		return nil, err
	}

	pkg := &models.TourPackage{
		Name:     name,
		Currency: input.Currency,
		Policy:   policy,
	}
	if err := s.repo.CreatePackage(ctx, pkg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tour package")
	}
	return pkg, nil
}

func (s *service) GetPackage(ctx context.Context, id uuid.UUID) (*models.TourPackage, error) {
	pkg, err := s.repo.FindPackage(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tour package not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tour package")
	}
	return pkg, nil
}

func (s *service) GetTourDate(ctx context.Context, id uuid.UUID) (*models.TourDate, error) {
	date, err := s.repo.FindTourDate(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tour date not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tour date")
	}
	return date, nil
}

func (s *service) ListTourDates(ctx context.Context, packageID uuid.UUID) ([]models.TourDate, error) {
	if _, err := s.GetPackage(ctx, packageID); err != nil {
		return nil, err
	}
	dates, err := s.repo.ListTourDates(ctx, packageID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tour dates")
	}
	return dates, nil
}
