package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/pagination"
)

type uplineWalker interface {
	UplineChain(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID, maxDepth int) ([]models.ResellerNode, error)
}

// Engine computes and records multi-level commissions.
type Engine interface {
	Distribute(ctx context.Context, tx *gorm.DB, input DistributeInput) (*Distribution, error)
	Void(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.CommissionRecord, error)
	ListByBeneficiary(ctx context.Context, resellerID uuid.UUID, params pagination.Params) (*BeneficiaryPage, error)
}

// DistributeInput is the confirmed booking plus what it was sold under.
// Owner is the booking's reseller as loaded in the confirming transaction.
type DistributeInput struct {
	Booking  *models.Booking
	TourDate *models.TourDate
	Package  *models.TourPackage
	Owner    *models.ResellerNode
}

// Distribution is the result of one Distribute call.
type Distribution struct {
	BaseAmount decimal.Decimal
	Total      decimal.Decimal
	Currency   enums.Currency
	Records    []models.CommissionRecord
}

// BeneficiaryPage is one page of a reseller's commission history.
type BeneficiaryPage struct {
	Items      []models.CommissionRecord `json:"items"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

type service struct {
	repo    Repository
	walker  uplineWalker
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

// NewEngine wires the commission engine. m may be nil.
func NewEngine(repo Repository, walker uplineWalker, m *metrics.EngineMetrics, logg *logger.Logger) (Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if walker == nil {
		return nil, fmt.Errorf("upline walker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, walker: walker, metrics: m, logg: logg}, nil
}

// Distribute must run at most once per booking; the (booking_id, level)
// unique index rejects a second run.
func (s *service) Distribute(ctx context.Context, tx *gorm.DB, input DistributeInput) (*Distribution, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "distribute requires a transaction")
	}
	if input.Booking == nil || input.TourDate == nil || input.Package == nil || input.Owner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking, tour date, package and owner required")
	}
	if input.Owner.ID != input.Booking.ResellerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner does not match booking reseller")
	}

	policy := input.Package.Policy
	base := BaseAmount(policy, input.TourDate.Price, input.Booking.SeatCount)
	result := &Distribution{
		BaseAmount: base,
		Total:      decimal.Zero,
		Currency:   input.Package.Currency,
	}
	if !base.IsPositive() {
		return result, nil
	}

	var chain []models.ResellerNode
	if policy.MaxLevels > 0 {
		walked, err := s.walker.UplineChain(ctx, tx, input.Owner.ID, policy.MaxLevels)
		if err != nil {
			return nil, err
		}
		chain = walked
	}

	lines := Split(base, policy.MaxLevels, *input.Owner, chain)
	records := make([]models.CommissionRecord, len(lines))
	for i, line := range lines {
		records[i] = models.CommissionRecord{
			BookingID:             input.Booking.ID,
			BeneficiaryResellerID: line.BeneficiaryID,
			Level:                 line.Level,
			Rate:                  line.Rate,
			BaseAmount:            base,
			Amount:                line.Amount,
			Currency:              input.Package.Currency,
			Status:                enums.CommissionStatusPending,
		}
	}
	if err := s.repo.WithTx(tx).CreateRecords(ctx, records); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "commissions already distributed for booking")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission records")
	}

	s.metrics.AddCommissions(metrics.CommissionCreated, len(records))
	result.Records = records
	result.Total = Total(lines)

	logCtx := s.logg.WithFields(s.logg.WithBookingID(ctx, input.Booking.ID.String()), map[string]any{
		"base_amount": base.StringFixed(2),
		"total":       result.Total.StringFixed(2),
		"levels":      len(records),
	})
	s.logg.Info(logCtx, "commissions distributed")
	return result, nil
}

func (s *service) Void(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "void requires a transaction")
	}
	affected, err := s.repo.WithTx(tx).VoidByBooking(ctx, bookingID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void commission records")
	}
	s.metrics.AddCommissions(metrics.CommissionVoided, int(affected))
	return int(affected), nil
}

func (s *service) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.CommissionRecord, error) {
	records, err := s.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list booking commissions")
	}
	return records, nil
}

func (s *service) ListByBeneficiary(ctx context.Context, resellerID uuid.UUID, params pagination.Params) (*BeneficiaryPage, error) {
	if resellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reseller id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByBeneficiary(ctx, resellerID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list beneficiary commissions")
	}

	items, next := pagination.Trim(rows, limit, func(r models.CommissionRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &BeneficiaryPage{Items: items, NextCursor: next}, nil
}
