package http

import (
	"net/http"

	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/edumall/edumall/pkg/slogx"
)

type OTPHandler struct {
	Auth *service.AuthService

	// EchoCodes returns the dispatched code in the response body. Only for
	// development and end-to-end tests.
	EchoCodes bool
}

// HandleSend issues a fresh challenge for the phone in the body.
//
//	@Summary		Send a one-time code
//	@Description	Creates a challenge for the phone and dispatches a 6-digit code. A new send replaces any pending challenge.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		identitysdk.SendOTPRequest	true	"Phone number"
//	@Success		200		{object}	identitysdk.SendOTPResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"Invalid phone number"
//	@Failure		429		{object}	identitysdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/v1/auth/otp/send [post].
func (h *OTPHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.SendOTPRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		identitysdk.ErrInvalidRequest.WriteError(w)
		return
	}

	code, err := h.Auth.OTP.Send(ctx, req.Phone)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	resp := identitysdk.SendOTPResponse{Success: true, Message: "OTP sent"}
	if h.EchoCodes {
		resp.DevCode = code
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleVerify redeems a code and opens a session, registering the phone
// when it has no account yet.
//
//	@Summary		Verify a one-time code
//	@Description	Redeems the code. Unknown phones are registered and must carry first and last name.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		identitysdk.VerifyOTPRequest	true	"Phone, code and optional profile"
//	@Success		200		{object}	identitysdk.VerifyOTPResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"Invalid or expired code, missing profile"
//	@Failure		429		{object}	identitysdk.ErrorResponse	"Too many attempts"
//	@Router			/v1/auth/otp/verify [post].
func (h *OTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.OTP == "" {
		identitysdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.Auth.VerifyOTP(ctx, req.Phone, req.OTP, service.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, identitysdk.VerifyOTPResponse{
		Success: true,
		Created: res.Created,
		User:    toUser(res.User),
		Tokens:  toTokenPair(res.Tokens),
	})
}
