package http

import (
	"net/http"
	"time"

	"github.com/edumall/edumall/pkg/guard"
	"github.com/edumall/edumall/pkg/httpx"
)

// AccountResponse is the profile page view.
type AccountResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	FirstName  string     `json:"first_name"`
	Mobile     string     `json:"mobile"`
	Email      string     `json:"email,omitempty"`
	IsVerified bool       `json:"is_verified"`
	JoinDate   *time.Time `json:"join_date,omitempty"`
}

// HandleAccount runs behind guard.Require, which injects the identity.
func HandleAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := guard.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_required", "no session")
		return
	}

	resp := AccountResponse{
		ID:         id.ID,
		Name:       id.Name,
		FirstName:  id.FirstName(),
		Mobile:     id.Mobile,
		Email:      id.Email,
		IsVerified: id.IsVerified,
	}
	if !id.JoinDate.IsZero() {
		joined := id.JoinDate
		resp.JoinDate = &joined
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
