package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	identityhttp "github.com/edumall/edumall/internal/identity/http"
	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/internal/identity/store/drivers/sqlite"
	"github.com/edumall/edumall/internal/storefront/basket"
	"github.com/edumall/edumall/pkg/cryptox"
	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/guard"
	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/edumall/edumall/pkg/jwtx"
	"github.com/edumall/edumall/pkg/localstore"
	"github.com/edumall/edumall/pkg/session"
	"github.com/edumall/edumall/pkg/slogx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const testPhone = "9876543210"

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (r *recordingSender) SendOTP(_ context.Context, phone, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = map[string]string{}
	}
	r.codes[phone] = code
	return nil
}

func (r *recordingSender) last(phone string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[phone]
}

// newIdentityServer runs the identity service in-process.
func newIdentityServer(t *testing.T, sender service.Sender) *httptest.Server {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test-key", pemKey)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	issuer, audience := "https://identity.edumall.test", []string{"storefront"}
	tokens := &service.TokenService{
		Signer:     signer,
		Store:      st,
		Issuer:     issuer,
		Audience:   audience,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
	users := &service.UserService{Store: st}

	r := identityhttp.NewRouter(keys, jwtx.NewVerifierEdDSA(keys, issuer, audience), "test", st, st.Challenges(), slogx.Discard())
	r.TokenService = tokens
	r.UserService = users
	r.AuthService = &service.AuthService{
		OTP:    &service.OTPService{Challenges: st.Challenges(), Sender: sender},
		Users:  users,
		Tokens: tokens,
	}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type storefront struct {
	srv      *httptest.Server
	sess     *session.Store
	wizard   *enroll.Wizard
	local    *localstore.Store
	sender   *recordingSender
	closed   chan enroll.Result
	identity *httptest.Server
}

func newStorefront(t *testing.T, cooldown time.Duration) *storefront {
	t.Helper()

	sender := &recordingSender{}
	idSrv := newIdentityServer(t, sender)

	local, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	require.NoError(t, local.ApplyMigrations())

	sess := session.New(identitysdk.New(idSrv.URL, local), local, session.WithLogger(slogx.Discard()))
	t.Cleanup(sess.Dispose)

	closed := make(chan enroll.Result, 1)
	wizard := enroll.New(sess,
		enroll.WithClock(clockwork.NewFakeClock()),
		enroll.WithLogger(slogx.Discard()),
		enroll.WithResendCooldown(cooldown),
		enroll.WithOnClose(func(res enroll.Result) { closed <- res }),
	)
	t.Cleanup(func() { wizard.Close() })

	wishlist := basket.NewWishlist(local)
	t.Cleanup(wishlist.ClearOnSignOut(sess, slogx.Discard()))

	r := NewRouter("test", sess, wizard, local, slogx.Discard())
	r.Cart = basket.NewCart(local)
	r.Wishlist = wishlist
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &storefront{
		srv:      srv,
		sess:     sess,
		wizard:   wizard,
		local:    local,
		sender:   sender,
		closed:   closed,
		identity: idSrv,
	}
}

func (s *storefront) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *storefront) restore(t *testing.T) {
	t.Helper()
	s.sess.Restore(context.Background())
	require.False(t, s.sess.IsLoading())
}

// signUp walks the wizard through signup for phone.
func (s *storefront) signUp(t *testing.T, phone, first, last string) {
	t.Helper()
	var st enroll.State
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/enroll", map[string]string{"mode": "signup"}, &st))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/enroll/phone", map[string]string{"phone": phone}, &st))
	require.Equal(t, enroll.StepCode, st.Step)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/enroll/code", map[string]string{"code": s.sender.last(phone)}, &st))
	require.Equal(t, enroll.StepProfile, st.Step)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/enroll/profile", map[string]string{
		"first_name": first,
		"last_name":  last,
		"email":      "asha@example.com",
	}, &st))
	require.True(t, st.Completed)
	require.Equal(t, enroll.MsgRegisterSuccess, st.Success)
}

func TestSessionGreeting(t *testing.T) {
	sf := newStorefront(t, enroll.DefaultResendCooldown)

	var resp SessionResponse
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/session", nil, &resp))
	require.True(t, resp.Loading)
	require.False(t, resp.Authenticated)
	require.Equal(t, "Sign In", resp.Greeting)

	sf.restore(t)
	sf.signUp(t, testPhone, "Asha", "Verma")

	resp = SessionResponse{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/session", nil, &resp))
	require.True(t, resp.Authenticated)
	require.False(t, resp.Loading)
	require.Equal(t, "Hello, Asha", resp.Greeting)
	require.NotNil(t, resp.Identity)
	require.Equal(t, "Asha Verma", resp.Identity.Name)
	require.Equal(t, testPhone, resp.Identity.Mobile)

	require.Equal(t, http.StatusNoContent, sf.do(t, http.MethodPost, "/v1/session/logout", nil, nil))

	resp = SessionResponse{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/session", nil, &resp))
	require.False(t, resp.Authenticated)
	require.Equal(t, "Sign In", resp.Greeting)
}

func TestAccountIsGuarded(t *testing.T) {
	sf := newStorefront(t, enroll.DefaultResendCooldown)

	var loading guard.LoadingBody
	require.Equal(t, http.StatusServiceUnavailable, sf.do(t, http.MethodGet, "/v1/account", nil, &loading))
	require.Equal(t, "loading", loading.Status)

	sf.restore(t)

	var prompt guard.PromptBody
	require.Equal(t, http.StatusUnauthorized, sf.do(t, http.MethodGet, "/v1/account?auth=signup", nil, &prompt))
	require.Equal(t, enroll.ModeSignup, prompt.SelectedMode)
	require.Len(t, prompt.Actions, 2)
	require.Equal(t, "/v1/enroll", prompt.Actions[0].Href)

	sf.signUp(t, testPhone, "Asha", "Verma")

	var acct AccountResponse
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/account", nil, &acct))
	require.Equal(t, "Asha", acct.FirstName)
	require.Equal(t, "asha@example.com", acct.Email)
	require.True(t, acct.IsVerified)
	require.NotNil(t, acct.JoinDate)
}

func TestEnrollLoginFlow(t *testing.T) {
	sf := newStorefront(t, enroll.DefaultResendCooldown)
	sf.restore(t)
	sf.signUp(t, testPhone, "Asha", "Verma")
	require.Equal(t, http.StatusNoContent, sf.do(t, http.MethodPost, "/v1/session/logout", nil, nil))

	var st enroll.State
	// An empty body opens in login mode.
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll", nil, &st))
	require.Equal(t, enroll.ModeLogin, st.Mode)
	require.Equal(t, enroll.StepPhone, st.Step)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/phone", map[string]string{"phone": testPhone}, &st))
	require.Equal(t, enroll.MsgCodeSent, st.Success)
	require.Equal(t, 30, st.ResendIn)
	require.False(t, st.CanResend)

	var serr StateError
	require.Equal(t, http.StatusConflict, sf.do(t, http.MethodPost, "/v1/enroll/mode", map[string]string{"mode": "signup"}, &serr))
	require.Equal(t, ErrorCodeConflict, serr.Error)

	serr = StateError{}
	require.Equal(t, http.StatusTooManyRequests, sf.do(t, http.MethodPost, "/v1/enroll/resend", nil, &serr))
	require.Equal(t, ErrorCodeResendTooSoon, serr.Error)

	serr = StateError{}
	require.Equal(t, http.StatusBadRequest, sf.do(t, http.MethodPost, "/v1/enroll/code", map[string]string{"code": "12"}, &serr))
	require.Equal(t, ErrorCodeInvalidRequest, serr.Error)
	require.Equal(t, enroll.MsgInvalidCode, serr.ErrorDescription)
	require.Equal(t, enroll.StepCode, serr.State.Step)

	code := sf.sender.last(testPhone)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	serr = StateError{}
	require.Equal(t, http.StatusBadGateway, sf.do(t, http.MethodPost, "/v1/enroll/code", map[string]string{"code": wrong}, &serr))
	require.Equal(t, ErrorCodeUpstream, serr.Error)
	require.Equal(t, enroll.MsgVerifyFailed, serr.State.Error)

	st = enroll.State{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/code", map[string]string{"code": code}, &st))
	require.True(t, st.Completed)
	require.Equal(t, enroll.MsgLoginSuccess, st.Success)
	require.True(t, sf.sess.IsAuthenticated())

	// Nothing can be edited while the success message is shown.
	serr = StateError{}
	require.Equal(t, http.StatusConflict, sf.do(t, http.MethodPost, "/v1/enroll/back", nil, &serr))

	require.Equal(t, http.StatusNoContent, sf.do(t, http.MethodDelete, "/v1/enroll", nil, nil))
	st = enroll.State{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/enroll", nil, &st))
	require.False(t, st.Open)
	// Cancelled before the close delay, so no completion callback.
	require.Empty(t, sf.closed)
}

func TestEnrollValidationAndSteps(t *testing.T) {
	sf := newStorefront(t, 0)
	sf.restore(t)

	var serr StateError
	require.Equal(t, http.StatusConflict, sf.do(t, http.MethodPost, "/v1/enroll/phone", map[string]string{"phone": testPhone}, &serr))

	serr = StateError{}
	require.Equal(t, http.StatusBadRequest, sf.do(t, http.MethodPost, "/v1/enroll", map[string]string{"mode": "admin"}, &serr))

	var st enroll.State
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll", map[string]string{"mode": "signup"}, &st))

	serr = StateError{}
	require.Equal(t, http.StatusBadRequest, sf.do(t, http.MethodPost, "/v1/enroll/phone", map[string]string{"phone": "12345"}, &serr))
	require.Equal(t, enroll.MsgInvalidPhone, serr.State.Error)
	require.Empty(t, sf.sender.last("12345"))

	serr = StateError{}
	require.Equal(t, http.StatusBadRequest, sf.do(t, http.MethodPost, "/v1/enroll/phone", map[string]string{"mobile": testPhone}, &serr))
	require.Equal(t, ErrorCodeInvalidRequest, serr.Error)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/phone", map[string]string{"phone": testPhone}, &st))
	require.True(t, st.CanResend)
	first := sf.sender.last(testPhone)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/resend", nil, &st))
	require.Equal(t, enroll.MsgCodeResent, st.Success)
	require.NotEmpty(t, first)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/code", map[string]string{"code": sf.sender.last(testPhone)}, &st))
	require.Equal(t, enroll.StepProfile, st.Step)

	serr = StateError{}
	require.Equal(t, http.StatusBadRequest, sf.do(t, http.MethodPost, "/v1/enroll/profile", map[string]string{"first_name": "A", "last_name": "Verma"}, &serr))
	require.Equal(t, enroll.MsgNameTooShort, serr.State.Error)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/back", nil, &st))
	require.Equal(t, enroll.StepCode, st.Step)
	require.True(t, st.CanResend)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/back", nil, &st))
	require.Equal(t, enroll.StepPhone, st.Step)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPost, "/v1/enroll/mode", map[string]string{"mode": "login"}, &st))
	require.Equal(t, enroll.ModeLogin, st.Mode)

	serr = StateError{}
	require.Equal(t, http.StatusConflict, sf.do(t, http.MethodPost, "/v1/enroll/back", nil, &serr))
}

func TestWishlistRequiresSessionAndClearsOnLogout(t *testing.T) {
	sf := newStorefront(t, enroll.DefaultResendCooldown)
	sf.restore(t)

	item := map[string]any{"title": "UPSC Prelims Test Series", "exam": "UPSC", "price_paise": 299900}

	var prompt guard.PromptBody
	require.Equal(t, http.StatusUnauthorized, sf.do(t, http.MethodPut, "/v1/wishlist/upsc-prelims", item, &prompt))
	require.Equal(t, "authentication_required", prompt.Error)

	sf.signUp(t, testPhone, "Asha", "Verma")

	var list ListResponse
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPut, "/v1/wishlist/upsc-prelims", item, &list))
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPut, "/v1/wishlist/upsc-prelims", item, &list))
	require.Equal(t, 1, list.Count)

	// The guest cart lives next to it.
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPut, "/v1/cart/upsc-prelims", item, &list))
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPut, "/v1/cart/upsc-prelims", item, &list))
	require.Equal(t, 1, list.Count)
	require.Equal(t, 2, list.Items[0].Quantity)
	require.Equal(t, int64(2*299900), list.TotalPaise)

	require.Equal(t, http.StatusNoContent, sf.do(t, http.MethodPost, "/v1/session/logout", nil, nil))

	sf.signUp(t, "9123456789", "Ravi", "Kumar")
	list = ListResponse{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/wishlist", nil, &list))
	require.Zero(t, list.Count)

	list = ListResponse{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/cart", nil, &list))
	require.Equal(t, 1, list.Count)
}

func TestCartEndpoints(t *testing.T) {
	sf := newStorefront(t, enroll.DefaultResendCooldown)

	var list ListResponse
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/v1/cart", nil, &list))
	require.Zero(t, list.Count)
	require.Empty(t, list.Items)

	var errBody struct {
		Error string `json:"error"`
	}
	require.Equal(t, http.StatusBadRequest, sf.do(t, http.MethodPut, "/v1/cart/gate-2027", map[string]any{"title": "GATE", "exam": "GATE"}, &errBody))
	require.Equal(t, ErrorCodeInvalidRequest, errBody.Error)

	require.Equal(t, http.StatusOK, sf.do(t, http.MethodPut, "/v1/cart/jee-main", map[string]any{"title": "JEE Main Crash Course", "exam": "jee", "price_paise": 99900, "quantity": 2}, &list))
	require.Equal(t, basket.ExamJEE, list.Items[0].Exam)

	errBody.Error = ""
	require.Equal(t, http.StatusNotFound, sf.do(t, http.MethodDelete, "/v1/cart/neet", nil, &errBody))
	require.Equal(t, ErrorCodeNotFound, errBody.Error)

	list = ListResponse{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodDelete, "/v1/cart/jee-main", nil, &list))
	require.Zero(t, list.Count)

	require.Equal(t, http.StatusNoContent, sf.do(t, http.MethodDelete, "/v1/cart", nil, nil))
}

func TestHealthEndpoints(t *testing.T) {
	sf := newStorefront(t, enroll.DefaultResendCooldown)

	var health identitysdk.HealthResponse
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/livez", nil, &health))
	require.Equal(t, "ok", health.Status)

	health = identitysdk.HealthResponse{}
	require.Equal(t, http.StatusServiceUnavailable, sf.do(t, http.MethodGet, "/readyz", nil, &health))
	require.Equal(t, "loading", health.Checks["session"])

	sf.restore(t)
	health = identitysdk.HealthResponse{}
	require.Equal(t, http.StatusOK, sf.do(t, http.MethodGet, "/readyz", nil, &health))
	require.Equal(t, "ok", health.Status)

	require.NoError(t, sf.local.Close())
	health = identitysdk.HealthResponse{}
	require.Equal(t, http.StatusServiceUnavailable, sf.do(t, http.MethodGet, "/readyz", nil, &health))
	require.Equal(t, "degraded", health.Status)
	require.Contains(t, health.Checks["local_store"], "error")
}
