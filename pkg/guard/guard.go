// Package guard gates HTTP views on the storefront session.
package guard

import (
	"context"
	"net/http"

	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/session"
)

// Reader is the read side of *session.Store.
type Reader interface {
	IsLoading() bool
	Identity() (session.Identity, bool)
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the identity injected by Require or Optional.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(session.Identity)
	return id, ok
}

type config struct {
	fallback   http.Handler
	enrollPath string
}

type Option func(*config)

// WithFallback replaces the built-in sign-in prompt for unauthenticated
// requests.
func WithFallback(h http.Handler) Option {
	return func(c *config) { c.fallback = h }
}

// WithEnrollPath sets where the prompt's actions point. Defaults to /v1/enroll.
func WithEnrollPath(p string) Option {
	return func(c *config) { c.enrollPath = p }
}

// LoadingBody is written while the session is still restoring.
type LoadingBody struct {
	Status string `json:"status"`
}

// Action opens the enrollment wizard in Mode.
type Action struct {
	Mode   enroll.Mode `json:"mode"`
	Label  string      `json:"label"`
	Method string      `json:"method"`
	Href   string      `json:"href"`
}

// PromptBody is the built-in response for unauthenticated requests.
type PromptBody struct {
	Error        string      `json:"error"`
	Message      string      `json:"message"`
	SelectedMode enroll.Mode `json:"selected_mode"`
	Actions      []Action    `json:"actions"`
}

// Require lets a request through only once the store has resolved and holds
// an identity, which it injects into the request context. The guard keeps no
// identity of its own and asks the store on every request.
func Require(store Reader, opts ...Option) httpx.Middleware {
	cfg := config{enrollPath: "/v1/enroll"}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store.IsLoading() {
				writeLoading(w)
				return
			}

			id, ok := store.Identity()
			if !ok {
				if cfg.fallback != nil {
					cfg.fallback.ServeHTTP(w, r)
					return
				}
				writePrompt(w, r, cfg.enrollPath)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Optional never blocks. It injects the identity when one is present.
func Optional(store Reader) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := store.Identity(); ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeLoading(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	httpx.WriteJSON(w, http.StatusServiceUnavailable, LoadingBody{Status: "loading"})
}

// writePrompt renders the sign-in prompt. The ?auth= query picks which mode
// the dialog should open in.
func writePrompt(w http.ResponseWriter, r *http.Request, enrollPath string) {
	mode, err := enroll.ParseMode(r.URL.Query().Get("auth"))
	if err != nil {
		mode = enroll.ModeLogin
	}

	httpx.WriteJSON(w, http.StatusUnauthorized, PromptBody{
		Error:        "authentication_required",
		Message:      "Please sign in or create an account to continue",
		SelectedMode: mode,
		Actions: []Action{
			{Mode: enroll.ModeLogin, Label: "Sign In", Method: http.MethodPost, Href: enrollPath},
			{Mode: enroll.ModeSignup, Label: "Register", Method: http.MethodPost, Href: enrollPath},
		},
	})
}
