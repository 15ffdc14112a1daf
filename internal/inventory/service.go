package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/internal/tours"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/payloads"
)

// MaxSeatsPerDate caps capacity generated for a single departure.
const MaxSeatsPerDate = 10000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger tracks every seat of every tour date. Remaining capacity is always
// counted from the slots, never stored.
type Ledger interface {
	CreateTourDate(ctx context.Context, input CreateTourDateInput) (*models.TourDate, error)
	ReserveSeats(ctx context.Context, tx *gorm.DB, tourDateID, bookingID uuid.UUID, count int) ([]uuid.UUID, error)
	ConfirmSeats(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, slotIDs []uuid.UUID) error
	ReleaseSeats(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, slotIDs []uuid.UUID) error
	RemainingSeats(ctx context.Context, tourDateID uuid.UUID) (int, error)
	SeatSummary(ctx context.Context, tourDateID uuid.UUID) (*SeatSummary, error)
}

// CreateTourDateInput is the tour-creation event payload.
type CreateTourDateInput struct {
	PackageID     uuid.UUID
	DepartureDate time.Time
	Price         decimal.Decimal
	TotalSeats    int
}

// SeatSummary reports slot counts per status. Available + Reserved + Booked
// + Cancelled always equals Total.
type SeatSummary struct {
	TourDateID uuid.UUID `json:"tour_date_id"`
	Total      int       `json:"total"`
	Available  int       `json:"available"`
	Reserved   int       `json:"reserved"`
	Booked     int       `json:"booked"`
	Cancelled  int       `json:"cancelled"`
}

type service struct {
	tx      txRunner
	repo    Repository
	catalog tours.Repository
	outbox  outbox.Emitter
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

// NewLedger wires the inventory ledger. m may be nil.
func NewLedger(
	tx txRunner,
	repo Repository,
	catalog tours.Repository,
	emitter outbox.Emitter,
	m *metrics.EngineMetrics,
	logg *logger.Logger,
) (Ledger, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("tours repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		catalog: catalog,
		outbox:  emitter,
		metrics: m,
		logg:    logg,
	}, nil
}

func (s *service) CreateTourDate(ctx context.Context, input CreateTourDateInput) (*models.TourDate, error) {
	if input.PackageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package id required")
	}
	if input.TotalSeats <= 0 || input.TotalSeats > MaxSeatsPerDate {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("total seats must be between 1 and %d", MaxSeatsPerDate))
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.DepartureDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "departure date required")
	}

	var result *models.TourDate
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalog := s.catalog.WithTx(tx)
		if _, err := catalog.FindPackage(ctx, input.PackageID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tour package not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tour package")
		}

		date := &models.TourDate{
			PackageID:     input.PackageID,
			DepartureDate: input.DepartureDate.UTC(),
			Price:         input.Price.Round(2),
			TotalSeats:    input.TotalSeats,
		}
		if err := catalog.CreateTourDate(ctx, date); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tour date")
		}

		slots := make([]models.SeatSlot, input.TotalSeats)
		for i := range slots {
			slots[i] = models.SeatSlot{
				TourDateID: date.ID,
				Position:   i + 1,
				Status:     enums.SeatStatusAvailable,
			}
		}
		if err := s.repo.WithTx(tx).CreateSlots(ctx, slots); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate seat slots")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTourDateCreated,
			AggregateType: enums.AggregateTourDate,
			AggregateID:   date.ID,
			Actor:         &outbox.ActorRef{Source: "inventory"},
			Data: payloads.TourDateCreatedEvent{
				TourDateID:    date.ID,
				PackageID:     date.PackageID,
				DepartureDate: date.DepartureDate,
				Price:         date.Price,
				TotalSeats:    date.TotalSeats,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit tour date created")
		}
		result = date
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(s.logg.WithTourDateID(ctx, result.ID.String()), "total_seats", result.TotalSeats)
	s.logg.Info(logCtx, "tour date created")
	return result, nil
}

// ReserveSeats binds the first count available slots, by position, to
// bookingID. On shortfall nothing is kept once the caller rolls back.
func (s *service) ReserveSeats(ctx context.Context, tx *gorm.DB, tourDateID, bookingID uuid.UUID, count int) ([]uuid.UUID, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reserve seats requires a transaction")
	}
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	repo := s.repo.WithTx(tx)

	if _, err := repo.LockTourDate(ctx, tourDateID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tour date not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tour date")
	}

	slots, err := repo.FindAvailable(ctx, tourDateID, count)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "select available seats")
	}
	if len(slots) < count {
		return nil, s.insufficient(ctx, tourDateID, count, len(slots))
	}

	ids := make([]uuid.UUID, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}
	affected, err := repo.ReserveSlots(ctx, ids, bookingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve seats")
	}
	if affected != int64(count) {
		return nil, s.insufficient(ctx, tourDateID, count, int(affected))
	}

	s.metrics.ObserveReservation(metrics.ReservationReserved)
	s.metrics.AddSeatTransitions(string(enums.SeatStatusReserved), count)
	return ids, nil
}

func (s *service) insufficient(ctx context.Context, tourDateID uuid.UUID, requested, available int) error {
	s.metrics.ObserveReservation(metrics.ReservationInsufficient)
	logCtx := s.logg.WithFields(s.logg.WithTourDateID(ctx, tourDateID.String()), map[string]any{
		"requested": requested,
		"available": available,
	})
	s.logg.Warn(logCtx, "insufficient inventory")
	return pkgerrors.New(pkgerrors.CodeInsufficientInventory, "not enough seats available").
		WithDetails(map[string]any{"requested": requested, "available": available})
}

func (s *service) ConfirmSeats(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, slotIDs []uuid.UUID) error {
	return s.transition(ctx, tx, bookingID, slotIDs, []enums.SeatStatus{enums.SeatStatusReserved}, enums.SeatStatusBooked)
}

func (s *service) ReleaseSeats(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, slotIDs []uuid.UUID) error {
	return s.transition(ctx, tx, bookingID, slotIDs, []enums.SeatStatus{enums.SeatStatusReserved, enums.SeatStatusBooked}, enums.SeatStatusAvailable)
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, slotIDs []uuid.UUID, from []enums.SeatStatus, to enums.SeatStatus) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "seat transition requires a transaction")
	}
	if len(slotIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat slot ids required")
	}
	affected, err := s.repo.WithTx(tx).TransitionSlots(ctx, bookingID, slotIDs, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update seat slots")
	}
	if affected != int64(len(slotIDs)) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("seat slots not in expected state for %s", to)).
			WithDetails(map[string]any{"expected": len(slotIDs), "matched": affected})
	}
	s.metrics.AddSeatTransitions(string(to), len(slotIDs))
	return nil
}

func (s *service) RemainingSeats(ctx context.Context, tourDateID uuid.UUID) (int, error) {
	summary, err := s.SeatSummary(ctx, tourDateID)
	if err != nil {
		return 0, err
	}
	return summary.Available, nil
}

func (s *service) SeatSummary(ctx context.Context, tourDateID uuid.UUID) (*SeatSummary, error) {
	date, err := s.catalog.FindTourDate(ctx, tourDateID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tour date not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tour date")
	}
	counts, err := s.repo.CountByStatus(ctx, tourDateID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count seat slots")
	}
	return &SeatSummary{
		TourDateID: tourDateID,
		Total:      date.TotalSeats,
		Available:  counts[enums.SeatStatusAvailable],
		Reserved:   counts[enums.SeatStatusReserved],
		Booked:     counts[enums.SeatStatusBooked],
		Cancelled:  counts[enums.SeatStatusCancelled],
	}, nil
}
