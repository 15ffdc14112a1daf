package controllers

import (
	"net/http"

	"github.com/angelmondragon/tourlink-backend/api/middleware"
	"github.com/angelmondragon/tourlink-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "public", "status": "ok"}
		if reseller := middleware.ResellerIDFromContext(r.Context()); reseller != "" {
			payload["reseller_id"] = reseller
		}
		responses.WriteSuccess(w, payload)
	}
}
