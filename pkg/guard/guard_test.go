package guard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/guard"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/session"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	mu       sync.Mutex
	loading  bool
	identity *session.Identity
}

func (s *stubReader) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *stubReader) Identity() (session.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return session.Identity{}, false
	}
	return *s.identity, true
}

func (s *stubReader) set(loading bool, id *session.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading, s.identity = loading, id
}

func protected() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := guard.IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"name": id.Name})
	})
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRequire(t *testing.T) {
	reader := &stubReader{loading: true}
	h := httpx.Chain(protected(), guard.Require(reader))

	t.Run("loading", func(t *testing.T) {
		rec := serve(h, "/v1/account")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "1", rec.Header().Get("Retry-After"))
		require.JSONEq(t, `{"status":"loading"}`, rec.Body.String())
	})

	reader.set(false, nil)

	t.Run("prompt", func(t *testing.T) {
		rec := serve(h, "/v1/account")
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var body guard.PromptBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "authentication_required", body.Error)
		require.Equal(t, enroll.ModeLogin, body.SelectedMode)
		require.Len(t, body.Actions, 2)
		require.Equal(t, enroll.ModeLogin, body.Actions[0].Mode)
		require.Equal(t, enroll.ModeSignup, body.Actions[1].Mode)
		require.Equal(t, "/v1/enroll", body.Actions[0].Href)
	})

	t.Run("prompt mode from query", func(t *testing.T) {
		var body guard.PromptBody
		require.NoError(t, json.Unmarshal(serve(h, "/v1/account?auth=signup").Body.Bytes(), &body))
		require.Equal(t, enroll.ModeSignup, body.SelectedMode)

		require.NoError(t, json.Unmarshal(serve(h, "/v1/account?auth=bogus").Body.Bytes(), &body))
		require.Equal(t, enroll.ModeLogin, body.SelectedMode)
	})

	reader.set(false, &session.Identity{ID: "1", Name: "Anu K"})

	t.Run("authenticated", func(t *testing.T) {
		rec := serve(h, "/v1/account")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"name":"Anu K"}`, rec.Body.String())
	})

	reader.set(false, nil)

	t.Run("reads through after logout", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, serve(h, "/v1/account").Code)
	})
}

func TestRequireFallback(t *testing.T) {
	reader := &stubReader{}
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/?auth=login", http.StatusSeeOther)
	})
	h := httpx.Chain(protected(), guard.Require(reader, guard.WithFallback(fallback)))

	rec := serve(h, "/v1/wishlist")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/?auth=login", rec.Header().Get("Location"))
}

func TestOptional(t *testing.T) {
	reader := &stubReader{loading: true}
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := guard.IdentityFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("Sign In"))
			return
		}
		_, _ = w.Write([]byte("Hello, " + id.FirstName()))
	}), guard.Optional(reader))

	require.Equal(t, "Sign In", serve(h, "/").Body.String())

	reader.set(false, &session.Identity{ID: "1", Name: "Anu K"})
	require.Equal(t, "Hello, Anu", serve(h, "/").Body.String())
}
