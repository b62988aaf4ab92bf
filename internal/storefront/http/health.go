package http

import (
	"net/http"
	"time"

	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/identitysdk"
)

// LivezHandler always answers 200 while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, identitysdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler is 503 while the session is still restoring or the local
// store is unreachable.
func ReadyzHandler(startTime time.Time, version string, sess SessionStore, local Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"session":     "ok",
			"local_store": "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if sess.IsLoading() {
			checks["session"] = "loading"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		if err := local.Ping(r.Context()); err != nil {
			checks["local_store"] = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, identitysdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
