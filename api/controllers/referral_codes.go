package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tourlink-backend/api/responses"
	"github.com/angelmondragon/tourlink-backend/internal/referral"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

type referralLookupResponse struct {
	ReferralCode string    `json:"referral_code"`
	ResellerID   uuid.UUID `json:"reseller_id"`
	Status       string    `json:"status"`
}

// ReferralCodeLookup resolves a referral code to its sponsor before signup.
// Matching is exact; no case folding is applied.
func ReferralCodeLookup(dir referral.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dir == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral directory unavailable"))
			return
		}
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		node, err := dir.ValidateCode(r.Context(), nil, code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, referralLookupResponse{
			ReferralCode: node.ReferralCode,
			ResellerID:   node.ID,
			Status:       node.Status.String(),
		})
	}
}
