package http

import (
	"net/http"

	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/edumall/edumall/pkg/slogx"
)

type MeHandler struct {
	UserService *service.UserService
}

// ServeHTTP returns the profile of the bearer.
//
//	@Summary		Current user
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	identitysdk.User
//	@Failure		401	{object}	identitysdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/users/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		identitysdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUser(user))
}

type LogoutHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP revokes the bearer's session. Always 204 once authenticated.
//
//	@Summary		Log out
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	identitysdk.LogoutRequest	false	"Refresh token to revoke"
//	@Success		204
//	@Failure		401	{object}	identitysdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		identitysdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req identitysdk.LogoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		identitysdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.Logout(ctx, userID, httpx.SessionIDFromContext(ctx), req.RefreshToken); err != nil {
		writeServiceError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireActiveSession rejects access tokens whose session has been logged
// out, even though the JWT itself has not expired yet.
func requireActiveSession(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, _ := httpx.UserIDFromContext(ctx)

			active, err := tokens.SessionActive(ctx, userID, httpx.SessionIDFromContext(ctx))
			if err != nil {
				writeServiceError(w, slogx.FromContext(ctx), err)
				return
			}
			if !active {
				identitysdk.ErrInvalidToken.WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
