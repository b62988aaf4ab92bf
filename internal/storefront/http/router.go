package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/edumall/edumall/internal/storefront/basket"
	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/guard"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/session"
	"github.com/edumall/edumall/pkg/slogx"
)

// SessionStore is what the storefront needs from *session.Store.
type SessionStore interface {
	guard.Reader
	Snapshot() session.Snapshot
	Logout(ctx context.Context)
}

// Pinger reports whether the local store is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	session SessionStore
	wizard  *enroll.Wizard
	local   Pinger

	Cart     *basket.Cart
	Wishlist *basket.Wishlist
}

func NewRouter(
	buildVersion string,
	sess SessionStore,
	wizard *enroll.Wizard,
	local Pinger,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		session:      sess,
		wizard:       wizard,
		local:        local,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerEnroll()
	r.registerAccount()
	r.registerBasket()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Session: r.session}

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			guard.Optional(r.session),
		),
	)
	r.Mux.HandleFunc("POST /v1/session/logout", h.HandleLogout)
}

func (r *Router) registerEnroll() {
	h := &EnrollHandler{Wizard: r.wizard}

	r.Mux.HandleFunc("POST /v1/enroll", h.HandleOpen)
	r.Mux.HandleFunc("GET /v1/enroll", h.HandleState)
	r.Mux.HandleFunc("DELETE /v1/enroll", h.HandleClose)
	r.Mux.HandleFunc("POST /v1/enroll/mode", h.HandleMode)
	r.Mux.HandleFunc("POST /v1/enroll/back", h.HandleBack)
	r.Mux.HandleFunc("POST /v1/enroll/profile", h.HandleProfile)

	// Each of these reaches the identity service, which sends SMS or
	// counts attempts. Fail fast locally before it rate limits us.
	r.Mux.Handle("POST /v1/enroll/phone",
		httpx.Chain(http.HandlerFunc(h.HandlePhone),
			httpx.RateLimitByIPAndJSONField(httpx.OTPLimit, "phone"),
		),
	)
	r.Mux.Handle("POST /v1/enroll/code",
		httpx.Chain(http.HandlerFunc(h.HandleCode),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/enroll/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			httpx.RateLimitByIP(httpx.OTPLimit),
		),
	)
}

func (r *Router) registerAccount() {
	r.Mux.Handle("GET /v1/account",
		httpx.Chain(http.HandlerFunc(HandleAccount),
			guard.Require(r.session, guard.WithEnrollPath("/v1/enroll")),
		),
	)
}

func (r *Router) registerBasket() {
	wishlist := &ListHandler{List: wishlistList{r.Wishlist}}
	requireSession := guard.Require(r.session, guard.WithEnrollPath("/v1/enroll"))

	r.Mux.Handle("GET /v1/wishlist", httpx.Chain(http.HandlerFunc(wishlist.HandleList), requireSession))
	r.Mux.Handle("DELETE /v1/wishlist", httpx.Chain(http.HandlerFunc(wishlist.HandleClear), requireSession))
	r.Mux.Handle("PUT /v1/wishlist/{sku}", httpx.Chain(http.HandlerFunc(wishlist.HandlePut), requireSession))
	r.Mux.Handle("DELETE /v1/wishlist/{sku}", httpx.Chain(http.HandlerFunc(wishlist.HandleRemove), requireSession))

	// The cart works for guests too.
	cart := &ListHandler{List: cartList{r.Cart}}
	r.Mux.HandleFunc("GET /v1/cart", cart.HandleList)
	r.Mux.HandleFunc("DELETE /v1/cart", cart.HandleClear)
	r.Mux.HandleFunc("PUT /v1/cart/{sku}", cart.HandlePut)
	r.Mux.HandleFunc("DELETE /v1/cart/{sku}", cart.HandleRemove)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.session, r.local),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
