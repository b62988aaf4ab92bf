package http

import (
	"net/http"

	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/edumall/edumall/pkg/slogx"
)

type RefreshHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP rotates a refresh token.
//
//	@Summary		Refresh tokens
//	@Description	Exchanges a refresh token for a new pair. Reusing a rotated token revokes its session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		identitysdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	identitysdk.TokenPair
//	@Failure		400		{object}	identitysdk.ErrorResponse	"Invalid refresh token"
//	@Router			/v1/auth/token/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		identitysdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair))
}
