// Package enroll is the sign-in and sign-up wizard: phone, then one-time
// code, then (for new accounts) a profile step.
//
// A Wizard owns its timers. The resend countdown is a single ticker task and
// the post-success close is a single cancellable timer; both die with the
// step or the wizard. Open and Close advance a generation counter and cancel
// the context handed to the session store, so a store call that resolves
// after the dialog moved on cannot change the wizard's state.
package enroll

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/edumall/edumall/pkg/session"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultResendCooldown = 30 * time.Second
	DefaultCloseDelay     = 1500 * time.Millisecond

	codeLength    = 6
	minNameLength = 2
)

var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// SessionStore is the part of *session.Store the wizard drives.
type SessionStore interface {
	RequestCode(ctx context.Context, phone string) bool
	VerifyAndLogin(ctx context.Context, phone, code string) bool
	VerifyAndRegister(ctx context.Context, phone, code string, p session.Profile) bool
}

type Option func(*Wizard)

func WithClock(c clockwork.Clock) Option { return func(w *Wizard) { w.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(w *Wizard) { w.log = l } }

// WithOnClose is called once the close delay after a successful enrollment
// elapses. It is not called when the visitor cancels.
func WithOnClose(fn func(Result)) Option { return func(w *Wizard) { w.onClose = fn } }

func WithResendCooldown(d time.Duration) Option { return func(w *Wizard) { w.cooldown = d } }

func WithCloseDelay(d time.Duration) Option { return func(w *Wizard) { w.closeDelay = d } }

type Wizard struct {
	store      SessionStore
	clock      clockwork.Clock
	log        *slog.Logger
	onClose    func(Result)
	cooldown   time.Duration
	closeDelay time.Duration

	mu         sync.Mutex
	st         State
	gen        uint64
	ctx        context.Context
	cancel     context.CancelFunc
	countdown  *countdown
	closeTimer clockwork.Timer
}

type countdown struct {
	ticker clockwork.Ticker
	done   chan struct{}
}

func New(store SessionStore, opts ...Option) *Wizard {
	w := &Wizard{
		store:      store,
		clock:      clockwork.NewRealClock(),
		log:        slog.Default(),
		cooldown:   DefaultResendCooldown,
		closeDelay: DefaultCloseDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("component", "enroll")
	return w
}

// State returns a copy of the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st
}

// Open (re)starts the wizard in mode with a fresh state. Anything pending
// from a previous opening is cancelled.
func (w *Wizard) Open(mode Mode) (State, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return w.State(), err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetLocked()
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.st = State{Open: true, Mode: mode, Step: StepPhone}
	w.log.Debug("wizard opened", "mode", mode)
	return w.st, nil
}

// Close discards the state and cancels in-flight calls and timers.
func (w *Wizard) Close() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st.Open {
		w.log.Debug("wizard closed", "step", w.st.Step)
	}
	w.resetLocked()
	return w.st
}

// SetMode switches between login and signup. Only allowed at the phone step.
func (w *Wizard) SetMode(mode Mode) (State, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return w.State(), err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked(StepPhone); err != nil {
		if errors.Is(err, ErrWrongStep) {
			err = ErrModeLocked
		}
		return w.st, err
	}
	w.st.Mode = mode
	w.st.Step = StepPhone
	w.st.Error, w.st.Success = "", ""
	return w.st, nil
}

// SubmitPhone validates phone and asks the store to send a code. On success
// the wizard moves to the code step and the resend countdown starts.
func (w *Wizard) SubmitPhone(ctx context.Context, phone string) (State, error) {
	phone = strings.TrimSpace(phone)

	w.mu.Lock()
	if err := w.checkLocked(StepPhone); err != nil {
		defer w.mu.Unlock()
		return w.st, err
	}
	w.st.Phone = phone
	w.st.Success = ""
	if !phonePattern.MatchString(phone) {
		w.st.Error = MsgInvalidPhone
		defer w.mu.Unlock()
		return w.st, ErrInvalidPhone
	}
	call, done := w.beginLocked(ctx)
	w.mu.Unlock()

	ok := w.store.RequestCode(call, phone)
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.finishLocked(call); err != nil {
		return w.st, err
	}
	if !ok {
		w.st.Error = MsgSendFailed
		return w.st, ErrSendFailed
	}
	w.st.Step = StepCode
	w.st.Code = ""
	w.st.Success = MsgCodeSent
	w.startCountdownLocked()
	return w.st, nil
}

// SubmitCode checks the code length. In login mode it verifies with the
// store. In signup mode it only records the code and moves to the profile
// step; verification then happens with the registration call.
func (w *Wizard) SubmitCode(ctx context.Context, code string) (State, error) {
	code = strings.TrimSpace(code)

	w.mu.Lock()
	if err := w.checkLocked(StepCode); err != nil {
		defer w.mu.Unlock()
		return w.st, err
	}
	w.st.Code = code
	w.st.Success = ""
	if utf8.RuneCountInString(code) != codeLength {
		w.st.Error = MsgInvalidCode
		defer w.mu.Unlock()
		return w.st, ErrInvalidCode
	}

	if w.st.Mode == ModeSignup {
		defer w.mu.Unlock()
		w.stopCountdownLocked()
		w.st.ResendIn = 0
		w.st.CanResend = false
		w.st.Error = ""
		w.st.Step = StepProfile
		return w.st, nil
	}

	phone := w.st.Phone
	call, done := w.beginLocked(ctx)
	w.mu.Unlock()

	ok := w.store.VerifyAndLogin(call, phone, code)
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.finishLocked(call); err != nil {
		return w.st, err
	}
	if !ok {
		w.st.Error = MsgVerifyFailed
		return w.st, ErrVerifyFailed
	}
	w.stopCountdownLocked()
	w.completeLocked(MsgLoginSuccess)
	return w.st, nil
}

// Resend requests a fresh code once the countdown has run out.
func (w *Wizard) Resend(ctx context.Context) (State, error) {
	w.mu.Lock()
	if err := w.checkLocked(StepCode); err != nil {
		defer w.mu.Unlock()
		return w.st, err
	}
	if !w.st.CanResend || w.st.ResendIn > 0 {
		defer w.mu.Unlock()
		return w.st, ErrResendNotAllowed
	}
	phone := w.st.Phone
	w.st.Success = ""
	call, done := w.beginLocked(ctx)
	w.mu.Unlock()

	ok := w.store.RequestCode(call, phone)
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.finishLocked(call); err != nil {
		return w.st, err
	}
	if !ok {
		w.st.Error = MsgSendFailed
		return w.st, ErrSendFailed
	}
	w.st.Code = ""
	w.st.Success = MsgCodeResent
	w.startCountdownLocked()
	return w.st, nil
}

// Back steps from code to phone, or from profile to code.
func (w *Wizard) Back() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked(""); err != nil {
		return w.st, err
	}
	w.st.Error, w.st.Success = "", ""

	switch w.st.Step {
	case StepCode:
		w.stopCountdownLocked()
		w.st.Step = StepPhone
		w.st.Code = ""
		w.st.ResendIn = 0
		w.st.CanResend = false
	case StepProfile:
		w.st.Step = StepCode
		w.st.FirstName, w.st.LastName, w.st.Email = "", "", ""
		// The countdown was stopped on leaving the code step.
		w.st.ResendIn = 0
		w.st.CanResend = true
	default:
		return w.st, ErrWrongStep
	}
	return w.st, nil
}

// SubmitProfile validates the names and registers the account with the code
// captured at the previous step.
func (w *Wizard) SubmitProfile(ctx context.Context, firstName, lastName, email string) (State, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)

	w.mu.Lock()
	if err := w.checkLocked(StepProfile); err != nil {
		defer w.mu.Unlock()
		return w.st, err
	}
	w.st.FirstName, w.st.LastName, w.st.Email = firstName, lastName, email
	w.st.Success = ""
	if utf8.RuneCountInString(firstName) < minNameLength || utf8.RuneCountInString(lastName) < minNameLength {
		w.st.Error = MsgNameTooShort
		defer w.mu.Unlock()
		return w.st, ErrNameTooShort
	}

	phone, code := w.st.Phone, w.st.Code
	call, done := w.beginLocked(ctx)
	w.mu.Unlock()

	ok := w.store.VerifyAndRegister(call, phone, code, session.Profile{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
	})
	done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.finishLocked(call); err != nil {
		return w.st, err
	}
	if !ok {
		w.st.Error = MsgRegisterFailed
		return w.st, ErrRegisterFailed
	}
	w.completeLocked(MsgRegisterSuccess)
	return w.st, nil
}

// checkLocked guards every submit. An empty step skips the step check.
func (w *Wizard) checkLocked(step Step) error {
	switch {
	case !w.st.Open:
		return ErrClosed
	case w.st.Completed:
		return ErrCompleted
	case w.st.Busy:
		return ErrBusy
	case step != "" && w.st.Step != step:
		return ErrWrongStep
	}
	return nil
}

// inflight ties a store call to the generation that issued it.
type inflight struct {
	context.Context
	gen uint64
}

// beginLocked marks the wizard busy and returns a context that is cancelled
// when either the caller's ctx or the wizard's current opening ends.
func (w *Wizard) beginLocked(ctx context.Context) (*inflight, func()) {
	w.st.Busy = true
	w.st.Error = ""

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	return &inflight{Context: callCtx, gen: w.gen}, func() {
		stop()
		cancel()
	}
}

func (w *Wizard) finishLocked(call *inflight) error {
	if call.gen != w.gen {
		w.log.Debug("discarding result for a closed wizard")
		return ErrAborted
	}
	w.st.Busy = false
	return nil
}

// completeLocked shows the success message and schedules the close.
func (w *Wizard) completeLocked(msg string) {
	w.st.Error = ""
	w.st.Success = msg
	w.st.Completed = true

	gen := w.gen
	res := Result{Mode: w.st.Mode, Phone: w.st.Phone}
	w.closeTimer = w.clock.AfterFunc(w.closeDelay, func() {
		w.mu.Lock()
		if w.gen != gen {
			w.mu.Unlock()
			return
		}
		w.closeTimer = nil
		w.resetLocked()
		onClose := w.onClose
		w.mu.Unlock()

		w.log.Debug("wizard completed", "mode", res.Mode)
		if onClose != nil {
			onClose(res)
		}
	})
}

// resetLocked ends the current opening: timers stop, in-flight calls are
// cancelled and the state is discarded.
func (w *Wizard) resetLocked() {
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.stopCountdownLocked()
	if w.closeTimer != nil {
		w.closeTimer.Stop()
		w.closeTimer = nil
	}
	w.st = State{}
}

func (w *Wizard) startCountdownLocked() {
	w.stopCountdownLocked()

	w.st.ResendIn = int(w.cooldown / time.Second)
	w.st.CanResend = w.st.ResendIn <= 0
	if w.st.CanResend {
		w.st.ResendIn = 0
		return
	}

	cd := &countdown{ticker: w.clock.NewTicker(time.Second), done: make(chan struct{})}
	w.countdown = cd
	go w.runCountdown(cd)
}

func (w *Wizard) runCountdown(cd *countdown) {
	defer cd.ticker.Stop()
	for {
		select {
		case <-cd.done:
			return
		case <-cd.ticker.Chan():
			w.mu.Lock()
			if w.countdown != cd {
				w.mu.Unlock()
				return
			}
			if w.st.ResendIn > 0 {
				w.st.ResendIn--
			}
			if w.st.ResendIn == 0 {
				w.st.CanResend = true
				w.countdown = nil
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
		}
	}
}

func (w *Wizard) stopCountdownLocked() {
	if w.countdown == nil {
		return
	}
	close(w.countdown.done)
	w.countdown = nil
}
