package http

import (
	"net/http"

	"github.com/edumall/edumall/pkg/guard"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/session"
)

const signInLabel = "Sign In"

type SessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	Identity      *session.Identity `json:"identity,omitempty"`
	Greeting      string            `json:"greeting"`
}

type SessionHandler struct {
	Session SessionStore
}

// HandleGet renders the header state: a greeting for a signed-in visitor,
// the sign-in label otherwise.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap := h.Session.Snapshot()
	resp := SessionResponse{
		Authenticated: snap.Authenticated,
		Loading:       snap.Loading,
		Greeting:      signInLabel,
	}
	if id, ok := guard.IdentityFromContext(r.Context()); ok {
		resp.Authenticated = true
		resp.Identity = &id
		resp.Greeting = greeting(id)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogout always succeeds; remote failures are logged by the store.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func greeting(id session.Identity) string {
	if first := id.FirstName(); first != "" {
		return "Hello, " + first
	}
	return "Hello"
}
