package http

import (
	"errors"
	"net/http"

	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/slogx"
)

// Error codes returned by the storefront.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeUpstream       = "upstream_error"
	ErrorCodeConflict       = "conflict"
	ErrorCodeResendTooSoon  = "resend_not_allowed"
	ErrorCodeNotFound       = "not_found"
)

// StateError is the error envelope of the enroll endpoints. It carries the
// wizard state so the dialog can render the inline message.
type StateError struct {
	httpx.ErrorBody
	State enroll.State `json:"state"`
}

// writeState answers an enroll action: the new state on success, the
// mapped error plus state otherwise.
func writeState(w http.ResponseWriter, r *http.Request, st enroll.State, err error) {
	if err == nil {
		httpx.WriteJSON(w, http.StatusOK, st)
		return
	}

	status, code := enrollErrorStatus(err)
	if status == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("unexpected enroll error", "error", err)
	}

	desc := st.Error
	if desc == "" {
		desc = err.Error()
	}
	httpx.WriteJSON(w, status, StateError{
		ErrorBody: httpx.ErrorBody{Error: code, ErrorDescription: desc},
		State:     st,
	})
}

func writeBadRequest(w http.ResponseWriter, desc string, st enroll.State) {
	httpx.WriteJSON(w, http.StatusBadRequest, StateError{
		ErrorBody: httpx.ErrorBody{Error: ErrorCodeInvalidRequest, ErrorDescription: desc},
		State:     st,
	})
}

func enrollErrorStatus(err error) (int, string) {
	switch {
	case enroll.IsValidation(err):
		return http.StatusBadRequest, ErrorCodeInvalidRequest
	case enroll.IsRemote(err):
		return http.StatusBadGateway, ErrorCodeUpstream
	case errors.Is(err, enroll.ErrResendNotAllowed):
		return http.StatusTooManyRequests, ErrorCodeResendTooSoon
	case errors.Is(err, enroll.ErrBusy),
		errors.Is(err, enroll.ErrWrongStep),
		errors.Is(err, enroll.ErrModeLocked),
		errors.Is(err, enroll.ErrCompleted),
		errors.Is(err, enroll.ErrClosed),
		errors.Is(err, enroll.ErrAborted):
		return http.StatusConflict, ErrorCodeConflict
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
