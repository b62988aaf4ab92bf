package http

import (
	"context"
	"net/http"
	"time"

	"github.com/edumall/edumall/internal/identity/store"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/edumall/edumall/pkg/jwtx"
)

// LivezHandler always answers 200 while the process is serving.
//
//	@Summary	Liveness
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	identitysdk.HealthResponse
//	@Router		/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, identitysdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler reports 503 "degraded" when the database, the challenge
// store or the signing keys are unavailable.
//
//	@Summary	Readiness
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	identitysdk.HealthResponse
//	@Failure	503	{object}	identitysdk.HealthResponse	"One or more checks failed"
//	@Router		/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	challenges store.ChallengeStore,
	keys *jwtx.KeySet,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database":   "ok",
			"challenges": "ok",
			"signer":     "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		degrade := func(check, msg string) {
			checks[check] = "error: " + msg
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := st.Ping(r.Context()); err != nil {
			degrade("database", err.Error())
		}

		if p, ok := challenges.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				degrade("challenges", err.Error())
			}
		}

		if !keys.IsReady() {
			degrade("signer", "no keys loaded")
		}

		httpx.WriteJSON(w, statusCode, identitysdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

// JWKSHandler exposes the public signing keys.
//
//	@Summary	Get JWKS
//	@Tags		well-known
//	@Produce	json
//	@Success	200	{object}	jwtx.JWKS
//	@Router		/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
