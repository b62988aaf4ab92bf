package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/pkg/identitysdk"
)

// writeServiceError maps service errors onto the API envelope. Anything
// unrecognised is logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPhone):
		identitysdk.ErrInvalidPhone.WriteError(w)
	case errors.Is(err, service.ErrInvalidCode):
		identitysdk.ErrInvalidOTP.WriteError(w)
	case errors.Is(err, service.ErrCodeExpired):
		identitysdk.ErrOTPExpired.WriteError(w)
	case errors.Is(err, service.ErrTooManyAttempts):
		identitysdk.ErrTooManyAttempts.WriteError(w)
	case errors.Is(err, service.ErrProfileRequired):
		identitysdk.ErrProfileRequired.WriteError(w)
	case errors.Is(err, service.ErrInvalidProfile):
		identitysdk.NewAPIError(http.StatusBadRequest, identitysdk.ErrorCodeInvalidRequest, err.Error()).WriteError(w)
	case errors.Is(err, service.ErrInvalidRefresh):
		identitysdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrSessionRevoked), errors.Is(err, service.ErrUserNotFound):
		identitysdk.ErrInvalidToken.WriteError(w)
	default:
		log.Error("request failed", "err", err)
		identitysdk.ErrServerError.WriteError(w)
	}
}
