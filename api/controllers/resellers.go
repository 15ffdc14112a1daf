package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourlink-backend/api/responses"
	"github.com/angelmondragon/tourlink-backend/api/validators"
	"github.com/angelmondragon/tourlink-backend/internal/commission"
	"github.com/angelmondragon/tourlink-backend/internal/hierarchy"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/pagination"
)

const (
	defaultUplineDepth = 10
	maxUplineDepth     = 100
)

type registerResellerRequest struct {
	ResellerID           string  `json:"reseller_id" validate:"required,uuid"`
	SponsorReferralCode  string  `json:"sponsor_referral_code,omitempty" validate:"omitempty,max=20"`
	ReferralCode         string  `json:"referral_code,omitempty" validate:"omitempty,max=20"`
	OwnCommissionRate    *string `json:"own_commission_rate,omitempty" validate:"omitempty,decimal"`
	UplineCommissionRate *string `json:"upline_commission_rate,omitempty" validate:"omitempty,decimal"`
}

func (r registerResellerRequest) toInput() (hierarchy.RegisterInput, error) {
	id, err := uuid.Parse(r.ResellerID)
	if err != nil {
		return hierarchy.RegisterInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reseller_id")
	}
	own, err := optionalDecimal("own_commission_rate", r.OwnCommissionRate)
	if err != nil {
		return hierarchy.RegisterInput{}, err
	}
	upline, err := optionalDecimal("upline_commission_rate", r.UplineCommissionRate)
	if err != nil {
		return hierarchy.RegisterInput{}, err
	}
	return hierarchy.RegisterInput{
		ResellerID:           id,
		SponsorReferralCode:  strings.TrimSpace(r.SponsorReferralCode),
		ReferralCode:         strings.TrimSpace(r.ReferralCode),
		OwnCommissionRate:    own,
		UplineCommissionRate: upline,
	}, nil
}

// ResellerRegister places a new reseller in the sponsor tree.
func ResellerRegister(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}

		var payload registerResellerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		node, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resellerDTO(node))
	}
}

// ResellerGet returns a single reseller node.
func ResellerGet(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "resellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		node, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resellerDTO(node))
	}
}

type setResellerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active suspended"`
}

// ResellerSetStatus moves a reseller between pending, active and suspended.
func ResellerSetStatus(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "resellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setResellerStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseResellerStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		node, err := svc.SetStatus(r.Context(), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resellerDTO(node))
	}
}

// ResellerUpline lists the sponsors above a reseller, nearest first.
func ResellerUpline(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "resellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		depth, err := validators.ParseQueryInt(r, "depth", defaultUplineDepth, 0, maxUplineDepth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chain, err := svc.UplineChain(r.Context(), nil, id, depth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resellerDTOs(chain))
	}
}

// ResellerDownline lists a reseller's direct recruits.
func ResellerDownline(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "resellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		nodes, err := svc.DirectDownline(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resellerDTOs(nodes))
	}
}

// ResellerCommissions pages through the commissions a reseller has earned.
func ResellerCommissions(engine commission.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission engine unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "resellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := engine.ListByBeneficiary(r.Context(), id, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, commissionPageDTO(page))
	}
}

func optionalDecimal(field string, raw *string) (*decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return &value, nil
}

func requiredDecimal(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
