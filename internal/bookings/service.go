package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/internal/commission"
	"github.com/angelmondragon/tourlink-backend/internal/hierarchy"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/internal/tours"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/payloads"
)

// ReasonExpired is recorded on bookings cancelled by the expiry sweep.
const ReasonExpired = "expired"

const defaultMaxSeats = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives bookings through pending, confirmed and cancelled.
// Confirm and cancel are the only ways out of pending; cancelled is final.
type Service interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (*models.Booking, error)
	Expire(ctx context.Context, bookingID uuid.UUID) (bool, error)
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	Commissions(ctx context.Context, bookingID uuid.UUID) ([]models.CommissionRecord, error)
}

// Customer is the traveller contact captured on the booking.
type Customer struct {
	Name  string
	Email *string
	Phone *string
}

// CreateBookingInput requests seats on one tour date for a reseller.
type CreateBookingInput struct {
	ResellerID uuid.UUID
	TourDateID uuid.UUID
	SeatCount  int
	Customer   Customer
}

// Dependencies groups the collaborators of the booking service.
type Dependencies struct {
	Tx          txRunner
	Repo        Repository
	Resellers   hierarchy.Repository
	Catalog     tours.Repository
	Ledger      inventory.Ledger
	Commissions commission.Engine
	Outbox      outbox.Emitter
	Metrics     *metrics.EngineMetrics
	Logger      *logger.Logger
}

type service struct {
	tx          txRunner
	repo        Repository
	resellers   hierarchy.Repository
	catalog     tours.Repository
	ledger      inventory.Ledger
	commissions commission.Engine
	outbox      outbox.Emitter
	metrics     *metrics.EngineMetrics
	logg        *logger.Logger
	maxSeats    int
}

// NewService wires the booking state machine.
func NewService(deps Dependencies, cfg config.BookingConfig) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("bookings repository required")
	case deps.Resellers == nil:
		return nil, fmt.Errorf("hierarchy repository required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("tours repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case deps.Commissions == nil:
		return nil, fmt.Errorf("commission engine required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	maxSeats := cfg.MaxSeats
	if maxSeats <= 0 {
		maxSeats = defaultMaxSeats
	}
	return &service{
		tx:          deps.Tx,
		repo:        deps.Repo,
		resellers:   deps.Resellers,
		catalog:     deps.Catalog,
		ledger:      deps.Ledger,
		commissions: deps.Commissions,
		outbox:      deps.Outbox,
		metrics:     deps.Metrics,
		logg:        deps.Logger,
		maxSeats:    maxSeats,
	}, nil
}

func (s *service) CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if input.ResellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reseller id required")
	}
	if input.TourDateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour date id required")
	}
	if input.SeatCount <= 0 || input.SeatCount > s.maxSeats {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("seat count must be between 1 and %d", s.maxSeats))
	}
	name := strings.TrimSpace(input.Customer.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}

	var result *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reseller, err := s.resellers.WithTx(tx).FindByID(ctx, input.ResellerID)
		if err != nil {
			return notFoundOr(err, "reseller not found", "load reseller")
		}
		if reseller.Status != enums.ResellerStatusActive {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reseller is not active")
		}

		if _, err := s.catalog.WithTx(tx).FindTourDate(ctx, input.TourDateID); err != nil {
			return notFoundOr(err, "tour date not found", "load tour date")
		}

		bookingID := uuid.New()
		slotIDs, err := s.ledger.ReserveSeats(ctx, tx, input.TourDateID, bookingID, input.SeatCount)
		if err != nil {
			return err
		}

		booking := &models.Booking{
			ID:            bookingID,
			ResellerID:    input.ResellerID,
			TourDateID:    input.TourDateID,
			SeatCount:     input.SeatCount,
			Status:        enums.BookingStatusPending,
			SeatSlotIDs:   slotIDs,
			CustomerName:  name,
			CustomerEmail: input.Customer.Email,
			CustomerPhone: input.Customer.Phone,
		}
		if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}

		if err := s.emitBooking(ctx, tx, enums.EventBookingCreated, booking, ""); err != nil {
			return err
		}
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBookingTransition(string(enums.BookingStatusPending))
	s.logg.Info(s.bookingContext(ctx, result), "booking created")
	return result, nil
}

func (s *service) Confirm(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var result *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking not found", "load booking")
		}
		if !booking.Status.CanTransitionTo(enums.BookingStatusConfirmed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot confirm a %s booking", booking.Status))
		}

		if err := s.ledger.ConfirmSeats(ctx, tx, booking.ID, booking.SeatSlotIDs); err != nil {
			return err
		}

		catalog := s.catalog.WithTx(tx)
		date, err := catalog.FindTourDate(ctx, booking.TourDateID)
		if err != nil {
			return notFoundOr(err, "tour date not found", "load tour date")
		}
		pkg, err := catalog.FindPackage(ctx, date.PackageID)
		if err != nil {
			return notFoundOr(err, "tour package not found", "load tour package")
		}
		owner, err := s.resellers.WithTx(tx).FindByID(ctx, booking.ResellerID)
		if err != nil {
			return notFoundOr(err, "reseller not found", "load reseller")
		}

		dist, err := s.commissions.Distribute(ctx, tx, commission.DistributeInput{
			Booking:  booking,
			TourDate: date,
			Package:  pkg,
			Owner:    owner,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		affected, err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusPending, map[string]any{
			"status":       enums.BookingStatusConfirmed,
			"confirmed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm booking")
		}
		if affected != 1 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking changed concurrently")
		}
		booking.Status = enums.BookingStatusConfirmed
		booking.ConfirmedAt = &now

		if err := s.emitBooking(ctx, tx, enums.EventBookingConfirmed, booking, ""); err != nil {
			return err
		}
		if len(dist.Records) > 0 {
			if err := s.emitDistribution(ctx, tx, booking.ID, dist); err != nil {
				return err
			}
		}
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBookingTransition(string(enums.BookingStatusConfirmed))
	s.logg.Info(s.bookingContext(ctx, result), "booking confirmed")
	return result, nil
}

func (s *service) Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	var result *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking not found", "load booking")
		}
		if !booking.Status.CanTransitionTo(enums.BookingStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s booking", booking.Status))
		}
		if err := s.cancelLocked(ctx, tx, booking, reason, enums.EventBookingCancelled); err != nil {
			return err
		}
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBookingTransition(string(enums.BookingStatusCancelled))
	s.logg.Info(s.bookingContext(ctx, result), "booking cancelled")
	return result, nil
}

// Expire cancels the booking only if it is still pending and reports
// whether it did.
func (s *service) Expire(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	expired := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return notFoundOr(err, "booking not found", "load booking")
		}
		if booking.Status != enums.BookingStatusPending {
			return nil
		}
		if err := s.cancelLocked(ctx, tx, booking, ReasonExpired, enums.EventBookingExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.metrics.IncBookingTransition(string(enums.BookingStatusCancelled))
		s.logg.Info(s.logg.WithBookingID(ctx, bookingID.String()), "pending booking expired")
	}
	return expired, nil
}

// cancelLocked releases seats, voids commissions of a confirmed booking and
// stamps the cancellation. booking must be locked by tx.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, booking *models.Booking, reason string, event enums.OutboxEventType) error {
	wasConfirmed := booking.Status == enums.BookingStatusConfirmed

	if err := s.ledger.ReleaseSeats(ctx, tx, booking.ID, booking.SeatSlotIDs); err != nil {
		return err
	}

	now := time.Now().UTC()
	if wasConfirmed {
		voided, err := s.commissions.Void(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		voidEvent := outbox.DomainEvent{
			EventType:     enums.EventCommissionsVoided,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         &outbox.ActorRef{ResellerID: &booking.ResellerID, Source: "bookings"},
			Data: payloads.CommissionsVoidedEvent{
				BookingID:   booking.ID,
				VoidedCount: voided,
				VoidedAt:    now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, voidEvent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit commissions voided")
		}
	}

	updates := map[string]any{
		"status":       enums.BookingStatusCancelled,
		"cancelled_at": now,
	}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
		updates["cancel_reason"] = reason
	}
	affected, err := s.repo.WithTx(tx).UpdateStatus(ctx, booking.ID, booking.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel booking")
	}
	if affected != 1 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "booking changed concurrently")
	}

	booking.Status = enums.BookingStatusCancelled
	booking.CancelledAt = &now
	booking.CancelReason = reasonPtr
	return s.emitBooking(ctx, tx, event, booking, reason)
}

func (s *service) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending bookings")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "load booking")
	}
	return booking, nil
}

func (s *service) Commissions(ctx context.Context, bookingID uuid.UUID) ([]models.CommissionRecord, error) {
	if _, err := s.Get(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.commissions.ListByBooking(ctx, bookingID)
}

func (s *service) emitBooking(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, booking *models.Booking, reason string) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         &outbox.ActorRef{ResellerID: &booking.ResellerID, Source: "bookings"},
		Data: payloads.BookingEvent{
			BookingID:    booking.ID,
			ResellerID:   booking.ResellerID,
			TourDateID:   booking.TourDateID,
			SeatCount:    booking.SeatCount,
			SeatSlotIDs:  booking.SeatSlotIDs,
			Status:       booking.Status,
			Reason:       reason,
			CustomerName: booking.CustomerName,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) emitDistribution(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, dist *commission.Distribution) error {
	lines := make([]payloads.CommissionLine, len(dist.Records))
	for i, rec := range dist.Records {
		lines[i] = payloads.CommissionLine{
			CommissionID:          rec.ID,
			BeneficiaryResellerID: rec.BeneficiaryResellerID,
			Level:                 rec.Level,
			Amount:                rec.Amount,
		}
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventCommissionsDistributed,
		AggregateType: enums.AggregateBooking,
		AggregateID:   bookingID,
		Actor:         &outbox.ActorRef{Source: "commission"},
		Data: payloads.CommissionsDistributedEvent{
			BookingID:  bookingID,
			Currency:   dist.Currency,
			BaseAmount: dist.BaseAmount,
			Total:      dist.Total,
			Lines:      lines,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit commissions distributed")
	}
	return nil
}

func (s *service) bookingContext(ctx context.Context, booking *models.Booking) context.Context {
	ctx = s.logg.WithBookingID(ctx, booking.ID.String())
	ctx = s.logg.WithResellerID(ctx, booking.ResellerID.String())
	return s.logg.WithField(ctx, "status", string(booking.Status))
}

func notFoundOr(err error, notFound, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
