package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourlink-backend/api/responses"
	"github.com/angelmondragon/tourlink-backend/api/validators"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/internal/tours"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

type createPackageRequest struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	CommissionType  string  `json:"commission_type" validate:"required,oneof=percentage fixed"`
	CommissionRate  string  `json:"commission_rate,omitempty" validate:"omitempty,decimal"`
	FixedAmount     string  `json:"fixed_amount,omitempty" validate:"omitempty,decimal"`
	MaxLevels       int     `json:"max_levels" validate:"gte=0"`
	CommissionNotes *string `json:"commission_notes,omitempty"`
}

func (r createPackageRequest) toInput() (tours.CreatePackageInput, error) {
	var currency enums.Currency
	if raw := strings.ToUpper(strings.TrimSpace(r.Currency)); raw != "" {
		parsed, err := enums.ParseCurrency(raw)
		if err != nil {
			return tours.CreatePackageInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		currency = parsed
	}
	commissionType, err := enums.ParseCommissionType(r.CommissionType)
	if err != nil {
		return tours.CreatePackageInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid commission_type")
	}
	input := tours.CreatePackageInput{
		Name:            r.Name,
		Currency:        currency,
		CommissionType:  commissionType,
		MaxLevels:       r.MaxLevels,
		CommissionNotes: r.CommissionNotes,
	}
	switch commissionType {
	case enums.CommissionTypePercentage:
		if input.CommissionRate, err = requiredDecimal("commission_rate", r.CommissionRate); err != nil {
			return tours.CreatePackageInput{}, err
		}
	case enums.CommissionTypeFixed:
		if input.FixedAmount, err = requiredDecimal("fixed_amount", r.FixedAmount); err != nil {
			return tours.CreatePackageInput{}, err
		}
	}
	return input, nil
}

// PackageCreate stores a tour package and its commission policy.
func PackageCreate(svc tours.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var payload createPackageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pkg, err := svc.CreatePackage(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, packageDTO(pkg))
	}
}

// PackageGet returns a tour package.
func PackageGet(svc tours.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pkg, err := svc.GetPackage(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, packageDTO(pkg))
	}
}

// PackageTourDates lists a package's departures.
func PackageTourDates(svc tours.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dates, err := svc.ListTourDates(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]TourDateDTO, 0, len(dates))
		for i := range dates {
			out = append(out, tourDateDTO(&dates[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type createTourDateRequest struct {
	PackageID     string    `json:"package_id" validate:"required,uuid"`
	DepartureDate time.Time `json:"departure_date" validate:"required"`
	Price         string    `json:"price" validate:"required,decimal"`
	TotalSeats    int       `json:"total_seats" validate:"required,gt=0"`
}

// TourDateCreate creates a departure and one available slot per seat.
func TourDateCreate(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger unavailable"))
			return
		}
		var payload createTourDateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		packageID, err := uuid.Parse(payload.PackageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid package_id"))
			return
		}
		price, err := requiredDecimal("price", payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		date, err := ledger.CreateTourDate(r.Context(), inventory.CreateTourDateInput{
			PackageID:     packageID,
			DepartureDate: payload.DepartureDate,
			Price:         price,
			TotalSeats:    payload.TotalSeats,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto := tourDateDTO(date)
		remaining := date.TotalSeats
		dto.RemainingSeats = &remaining
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// TourDateGet returns a departure with its live remaining seat count.
func TourDateGet(svc tours.Service, ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "tourDateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := svc.GetTourDate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		remaining, err := ledger.RemainingSeats(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto := tourDateDTO(date)
		dto.RemainingSeats = &remaining
		responses.WriteSuccess(w, dto)
	}
}

// TourDateSeats reports slot counts per status for a departure.
func TourDateSeats(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "tourDateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := ledger.SeatSummary(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
