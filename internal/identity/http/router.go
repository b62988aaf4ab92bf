package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/internal/identity/store"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/jwtx"
	"github.com/edumall/edumall/pkg/slogx"

	_ "github.com/edumall/edumall/api/identity" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:generate swag init --generalInfo router.go --dir .,../../../pkg/identitysdk,../../../pkg/jwtx --output ../../../api/identity --packageName identity --outputTypes go

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store      store.Store
	challenges store.ChallengeStore

	AuthService  *service.AuthService
	TokenService *service.TokenService
	UserService  *service.UserService

	// EchoOTPCodes exposes dispatched codes in /otp/send responses.
	EchoOTPCodes bool
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	challenges store.ChallengeStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		challenges:   challenges,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/",
		httpx.Chain(httpSwagger.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						EduMall Identity Service API
//	@version					0.1.0
//	@description				Phone one-time-code sign-in for the EduMall storefront. Access tokens are EdDSA JWTs, verifiable with the JWKS endpoint.
//
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	otp := &OTPHandler{Auth: r.AuthService, EchoCodes: r.EchoOTPCodes}

	// SMS costs money: limit by IP and by the target phone.
	r.Mux.Handle("POST /v1/auth/otp/send",
		httpx.Chain(http.HandlerFunc(otp.HandleSend),
			httpx.RateLimitByIPAndJSONField(httpx.OTPLimit, "phone"),
		),
	)

	// Brute force protection on top of the per-challenge attempt cap.
	r.Mux.Handle("POST /v1/auth/otp/verify",
		httpx.Chain(http.HandlerFunc(otp.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/token/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerUsers() {
	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(&MeHandler{UserService: r.UserService},
			httpx.AuthnMiddleware(r.verifier),
			requireActiveSession(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.challenges, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
