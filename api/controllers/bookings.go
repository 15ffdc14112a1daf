package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourlink-backend/api/middleware"
	"github.com/angelmondragon/tourlink-backend/api/responses"
	"github.com/angelmondragon/tourlink-backend/api/validators"
	"github.com/angelmondragon/tourlink-backend/internal/bookings"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

type createBookingRequest struct {
	ResellerID    string  `json:"reseller_id,omitempty" validate:"omitempty,uuid"`
	TourDateID    string  `json:"tour_date_id" validate:"required,uuid"`
	SeatCount     int     `json:"seat_count" validate:"required,gt=0"`
	CustomerName  string  `json:"customer_name" validate:"required,max=200"`
	CustomerEmail *string `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone *string `json:"customer_phone,omitempty" validate:"omitempty,max=32"`
}

// actingReseller reconciles the body's reseller_id with the X-Reseller-Id
// header. Either may be absent, but when both are set they must agree.
func (r createBookingRequest) actingReseller(headerID string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.ResellerID)
	switch {
	case raw == "" && headerID == "":
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "reseller_id is required")
	case raw == "":
		raw = headerID
	case headerID != "" && !strings.EqualFold(raw, headerID):
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "reseller_id does not match acting reseller")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reseller_id")
	}
	return id, nil
}

// BookingCreate reserves seats and opens a pending booking.
func BookingCreate(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		var payload createBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resellerID, err := payload.actingReseller(middleware.ResellerIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tourDateID, err := uuid.Parse(payload.TourDateID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tour_date_id"))
			return
		}

		booking, err := svc.CreateBooking(r.Context(), bookings.CreateBookingInput{
			ResellerID: resellerID,
			TourDateID: tourDateID,
			SeatCount:  payload.SeatCount,
			Customer: bookings.Customer{
				Name:  payload.CustomerName,
				Email: payload.CustomerEmail,
				Phone: payload.CustomerPhone,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bookingDTO(booking))
	}
}

// BookingGet returns a booking.
func BookingGet(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		booking, ok := loadOwnedBooking(w, r, svc, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, bookingDTO(booking))
	}
}

// BookingConfirm confirms a pending booking and distributes its commissions.
func BookingConfirm(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		booking, ok := loadOwnedBooking(w, r, svc, logg)
		if !ok {
			return
		}
		confirmed, err := svc.Confirm(r.Context(), booking.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookingDTO(confirmed))
	}
}

type cancelBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// BookingCancel cancels a pending or confirmed booking. The body is optional.
func BookingCancel(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cancelBookingRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		booking, ok := loadOwnedBooking(w, r, svc, logg)
		if !ok {
			return
		}
		cancelled, err := svc.Cancel(r.Context(), booking.ID, validators.SanitizeString(payload.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookingDTO(cancelled))
	}
}

// BookingCommissions lists the commission records written for a booking.
func BookingCommissions(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		booking, ok := loadOwnedBooking(w, r, svc, logg)
		if !ok {
			return
		}
		records, err := svc.Commissions(r.Context(), booking.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, commissionDTOs(records))
	}
}

// loadOwnedBooking resolves the bookingId path parameter. When the request
// names an acting reseller, the booking must belong to it.
func loadOwnedBooking(w http.ResponseWriter, r *http.Request, svc bookings.Service, logg *logger.Logger) (*models.Booking, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
		return nil, false
	}
	id, err := validators.ParseUUIDParam(r, "bookingId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	booking, err := svc.Get(r.Context(), id)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	if acting := middleware.ResellerIDFromContext(r.Context()); acting != "" && acting != booking.ResellerID.String() {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another reseller"))
		return nil, false
	}
	return booking, true
}
