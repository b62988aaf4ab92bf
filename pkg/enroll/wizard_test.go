package enroll_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/session"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu sync.Mutex

	sendOK     bool
	verifyOK   bool
	registerOK bool

	// gate, when set, blocks every call until closed or cancelled.
	gate chan struct{}

	sends     []string
	logins    []string
	registers []session.Profile
	ctxErrs   []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sendOK: true, verifyOK: true, registerOK: true}
}

func (f *fakeStore) wait(ctx context.Context) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
}

func (f *fakeStore) RequestCode(ctx context.Context, phone string) bool {
	f.mu.Lock()
	f.sends = append(f.sends, phone)
	f.mu.Unlock()
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendOK
}

func (f *fakeStore) VerifyAndLogin(ctx context.Context, phone, code string) bool {
	f.mu.Lock()
	f.logins = append(f.logins, phone+":"+code)
	f.mu.Unlock()
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyOK
}

func (f *fakeStore) VerifyAndRegister(ctx context.Context, phone, code string, p session.Profile) bool {
	f.mu.Lock()
	f.registers = append(f.registers, p)
	f.mu.Unlock()
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerOK
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends) + len(f.logins) + len(f.registers)
}

type closeRecorder struct {
	mu      sync.Mutex
	results []enroll.Result
}

func (c *closeRecorder) record(r enroll.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *closeRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

type harness struct {
	clock  *clockwork.FakeClock
	store  *fakeStore
	closed *closeRecorder
	wiz    *enroll.Wizard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  clockwork.NewFakeClock(),
		store:  newFakeStore(),
		closed: &closeRecorder{},
	}
	h.wiz = enroll.New(h.store,
		enroll.WithClock(h.clock),
		enroll.WithOnClose(h.closed.record),
	)
	t.Cleanup(func() { h.wiz.Close() })
	return h
}

// toCode opens the wizard in mode and gets it to the code step.
func (h *harness) toCode(t *testing.T, mode enroll.Mode) {
	t.Helper()
	_, err := h.wiz.Open(mode)
	require.NoError(t, err)
	st, err := h.wiz.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)
	require.Equal(t, enroll.StepCode, st.Step)
}

// tick advances the fake clock by one second and waits for the countdown to
// observe it.
func (h *harness) tick(t *testing.T, want int) {
	t.Helper()
	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.wiz.State().ResendIn == want }, time.Second, time.Millisecond)
}

func TestInvalidPhonesNeverReachStore(t *testing.T) {
	h := newHarness(t)
	_, err := h.wiz.Open(enroll.ModeLogin)
	require.NoError(t, err)

	// Every 10-digit string with a leading 0-5.
	for first := range 6 {
		phone := fmt.Sprintf("%d876543210", first)
		st, err := h.wiz.SubmitPhone(context.Background(), phone)
		require.ErrorIs(t, err, enroll.ErrInvalidPhone, phone)
		require.Equal(t, enroll.StepPhone, st.Step)
		require.Equal(t, enroll.MsgInvalidPhone, st.Error)
	}
	for _, phone := range []string{"", "98765", "98765432101", "98765abcde", "+919876543210"} {
		_, err := h.wiz.SubmitPhone(context.Background(), phone)
		require.ErrorIs(t, err, enroll.ErrInvalidPhone, phone)
	}
	require.Zero(t, h.store.calls())
}

func TestCountdownRunsThirtyTicks(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)

	st := h.wiz.State()
	require.Equal(t, 30, st.ResendIn)
	require.False(t, st.CanResend)
	require.Equal(t, enroll.MsgCodeSent, st.Success)

	for remaining := 29; remaining >= 0; remaining-- {
		_, err := h.wiz.Resend(context.Background())
		require.ErrorIs(t, err, enroll.ErrResendNotAllowed)
		h.tick(t, remaining)
	}

	require.Eventually(t, func() bool { return h.wiz.State().CanResend }, time.Second, time.Millisecond)
	require.Equal(t, 1, len(h.store.sends))

	st, err := h.wiz.Resend(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, st.ResendIn)
	require.False(t, st.CanResend)
	require.Equal(t, enroll.MsgCodeResent, st.Success)
	require.Equal(t, 2, len(h.store.sends))
}

func TestSendFailureStaysOnPhone(t *testing.T) {
	h := newHarness(t)
	h.store.sendOK = false
	_, err := h.wiz.Open(enroll.ModeLogin)
	require.NoError(t, err)

	st, err := h.wiz.SubmitPhone(context.Background(), "9876543210")
	require.ErrorIs(t, err, enroll.ErrSendFailed)
	require.Equal(t, enroll.StepPhone, st.Step)
	require.Equal(t, enroll.MsgSendFailed, st.Error)
	require.False(t, st.Busy)
}

func TestWrongLengthCodeRejectedLocally(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)

	for _, code := range []string{"", "12345", "1234567"} {
		for range 2 {
			st, err := h.wiz.SubmitCode(context.Background(), code)
			require.ErrorIs(t, err, enroll.ErrInvalidCode)
			require.Equal(t, enroll.StepCode, st.Step)
			require.Equal(t, enroll.MsgInvalidCode, st.Error)
		}
	}
	require.Empty(t, h.store.logins)
}

func TestLoginSuccessClosesAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)

	st, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	require.Equal(t, enroll.MsgLoginSuccess, st.Success)
	require.True(t, st.Completed)
	require.Equal(t, []string{"9876543210:123456"}, h.store.logins)

	_, err = h.wiz.Back()
	require.ErrorIs(t, err, enroll.ErrCompleted)

	h.clock.Advance(1499 * time.Millisecond)
	require.Never(t, func() bool { return h.closed.count() > 0 }, 20*time.Millisecond, time.Millisecond)
	require.True(t, h.wiz.State().Open)

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return h.closed.count() == 1 }, time.Second, time.Millisecond)
	require.False(t, h.wiz.State().Open)
	require.Equal(t, enroll.Result{Mode: enroll.ModeLogin, Phone: "9876543210"}, h.closed.results[0])
}

func TestVerifyFailureKeepsCodeStep(t *testing.T) {
	h := newHarness(t)
	h.store.verifyOK = false
	h.toCode(t, enroll.ModeLogin)

	st, err := h.wiz.SubmitCode(context.Background(), "000000")
	require.ErrorIs(t, err, enroll.ErrVerifyFailed)
	require.Equal(t, enroll.StepCode, st.Step)
	require.Equal(t, enroll.MsgVerifyFailed, st.Error)
	require.False(t, st.Completed)

	// The user retries explicitly.
	h.store.mu.Lock()
	h.store.verifyOK = true
	h.store.mu.Unlock()
	st, err = h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	require.True(t, st.Completed)
}

func TestCloseCancelsPendingClose(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)
	_, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)

	st := h.wiz.Close()
	require.False(t, st.Open)

	h.clock.Advance(5 * time.Second)
	require.Never(t, func() bool { return h.closed.count() > 0 }, 20*time.Millisecond, time.Millisecond)
}

func TestReopenCancelsPendingClose(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)
	_, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)

	st, err := h.wiz.Open(enroll.ModeSignup)
	require.NoError(t, err)
	require.Equal(t, enroll.State{Open: true, Mode: enroll.ModeSignup, Step: enroll.StepPhone}, st)

	h.clock.Advance(5 * time.Second)
	require.Never(t, func() bool { return h.closed.count() > 0 }, 20*time.Millisecond, time.Millisecond)
	require.True(t, h.wiz.State().Open)
}

func TestSignupFlow(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeSignup)

	st, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)
	require.Equal(t, enroll.StepProfile, st.Step)
	require.Zero(t, st.ResendIn)
	require.False(t, st.CanResend)
	require.Empty(t, h.store.logins, "signup code step does not call the store")

	// The countdown stays frozen on the profile step.
	h.clock.Advance(5 * time.Second)
	require.Zero(t, h.wiz.State().ResendIn)

	st, err = h.wiz.SubmitProfile(context.Background(), " A ", "Kumar", "")
	require.ErrorIs(t, err, enroll.ErrNameTooShort)
	require.Equal(t, enroll.MsgNameTooShort, st.Error)
	require.Empty(t, h.store.registers)

	st, err = h.wiz.SubmitProfile(context.Background(), " Anu ", " Kumar ", "anu@example.com")
	require.NoError(t, err)
	require.Equal(t, enroll.MsgRegisterSuccess, st.Success)
	require.Equal(t, []session.Profile{{FirstName: "Anu", LastName: "Kumar", Email: "anu@example.com"}}, h.store.registers)

	h.clock.Advance(enroll.DefaultCloseDelay)
	require.Eventually(t, func() bool { return h.closed.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, enroll.ModeSignup, h.closed.results[0].Mode)
}

func TestRegisterFailureStaysOnProfile(t *testing.T) {
	h := newHarness(t)
	h.store.registerOK = false
	h.toCode(t, enroll.ModeSignup)
	_, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)

	st, err := h.wiz.SubmitProfile(context.Background(), "Anu", "Kumar", "")
	require.ErrorIs(t, err, enroll.ErrRegisterFailed)
	require.Equal(t, enroll.StepProfile, st.Step)
	require.Equal(t, enroll.MsgRegisterFailed, st.Error)
}

func TestBack(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeSignup)
	_, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)

	st, err := h.wiz.Back()
	require.NoError(t, err)
	require.Equal(t, enroll.StepCode, st.Step)
	require.Empty(t, st.FirstName)
	require.True(t, st.CanResend)

	st, err = h.wiz.Back()
	require.NoError(t, err)
	require.Equal(t, enroll.StepPhone, st.Step)
	require.Empty(t, st.Code)
	require.Zero(t, st.ResendIn)
	require.Equal(t, "9876543210", st.Phone)

	_, err = h.wiz.Back()
	require.ErrorIs(t, err, enroll.ErrWrongStep)
}

func TestBackStopsCountdown(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)
	h.tick(t, 29)

	_, err := h.wiz.Back()
	require.NoError(t, err)

	h.clock.Advance(3 * time.Second)
	require.Never(t, func() bool { return h.wiz.State().ResendIn != 0 }, 20*time.Millisecond, time.Millisecond)
}

func TestModeToggle(t *testing.T) {
	h := newHarness(t)
	_, err := h.wiz.Open(enroll.ModeLogin)
	require.NoError(t, err)

	st, err := h.wiz.SetMode(enroll.ModeSignup)
	require.NoError(t, err)
	require.Equal(t, enroll.ModeSignup, st.Mode)

	_, err = h.wiz.SetMode("admin")
	require.ErrorIs(t, err, enroll.ErrInvalidMode)

	_, err = h.wiz.SubmitPhone(context.Background(), "9876543210")
	require.NoError(t, err)
	_, err = h.wiz.SetMode(enroll.ModeLogin)
	require.ErrorIs(t, err, enroll.ErrModeLocked)
}

func TestClosedWizardRejectsSubmits(t *testing.T) {
	h := newHarness(t)
	_, err := h.wiz.SubmitPhone(context.Background(), "9876543210")
	require.ErrorIs(t, err, enroll.ErrClosed)
	_, err = h.wiz.Open("guest")
	require.ErrorIs(t, err, enroll.ErrInvalidMode)
	require.Zero(t, h.store.calls())
}

func TestBusyGuardAndLateResult(t *testing.T) {
	h := newHarness(t)
	h.toCode(t, enroll.ModeLogin)

	gate := make(chan struct{})
	h.store.mu.Lock()
	h.store.gate = gate
	h.store.mu.Unlock()

	type outcome struct {
		st  enroll.State
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := h.wiz.SubmitCode(context.Background(), "123456")
		done <- outcome{st, err}
	}()

	require.Eventually(t, func() bool { return h.wiz.State().Busy }, time.Second, time.Millisecond)
	_, err := h.wiz.SubmitCode(context.Background(), "123456")
	require.ErrorIs(t, err, enroll.ErrBusy)

	// Closing while the verify is in flight cancels it and drops its result.
	h.wiz.Close()
	out := <-done
	close(gate)

	require.ErrorIs(t, out.err, enroll.ErrAborted)
	require.False(t, out.st.Open)
	require.False(t, h.wiz.State().Open)

	h.store.mu.Lock()
	require.ErrorIs(t, h.store.ctxErrs[len(h.store.ctxErrs)-1], context.Canceled)
	h.store.mu.Unlock()

	h.clock.Advance(5 * time.Second)
	require.Never(t, func() bool { return h.closed.count() > 0 }, 20*time.Millisecond, time.Millisecond)
}

func TestRealClockDefaults(t *testing.T) {
	store := newFakeStore()
	closed := make(chan enroll.Result, 1)
	wiz := enroll.New(store,
		enroll.WithCloseDelay(10*time.Millisecond),
		enroll.WithResendCooldown(0),
		enroll.WithOnClose(func(r enroll.Result) { closed <- r }),
	)

	_, err := wiz.Open(enroll.ModeLogin)
	require.NoError(t, err)
	st, err := wiz.SubmitPhone(context.Background(), "6000000000")
	require.NoError(t, err)
	require.True(t, st.CanResend)

	_, err = wiz.SubmitCode(context.Background(), "123456")
	require.NoError(t, err)

	select {
	case r := <-closed:
		require.Equal(t, "6000000000", r.Phone)
	case <-time.After(time.Second):
		t.Fatal("wizard did not close")
	}
}
