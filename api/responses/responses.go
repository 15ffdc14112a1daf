package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/types"
)

// RequestIDHeader is set by the request id middleware before any handler
// writes, so error bodies can echo it.
const RequestIDHeader = "X-Request-Id"

// exposedCodes keep the caller-facing message from the typed error; all other
// codes answer with the generic public message.
var exposedCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:            true,
	pkgerrors.CodeForbidden:             true,
	pkgerrors.CodeNotFound:              true,
	pkgerrors.CodeConflict:              true,
	pkgerrors.CodeStateConflict:         true,
	pkgerrors.CodeCycle:                 true,
	pkgerrors.CodeInsufficientInventory: true,
	pkgerrors.CodeIdempotency:           true,
	pkgerrors.CodeRateLimit:             true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err to its status and envelope. Untyped errors become
// INTERNAL_ERROR. When logg is set the error is logged with its diagnostics,
// at warn for client errors and error for the rest.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		Retryable: meta.Retryable,
		RequestID: w.Header().Get(RequestIDHeader),
	}
	if exposedCodes[typed.Code()] && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Diagnose(err).Fields())
		if meta.HTTPStatus < http.StatusInternalServerError && !meta.HighSeverity {
			logg.Warn(ctx, "request.error")
		} else {
			logg.Error(ctx, "request.error", err)
		}
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are gone; nothing useful left to do on failure
	_ = json.NewEncoder(w).Encode(payload)
}
