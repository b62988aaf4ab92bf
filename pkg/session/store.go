// Package session holds who is signed in to the storefront.
//
// A Store is the only component that talks to the identity service or
// touches the persisted token pair and legacy user cache. Everything else
// reads Identity through it and is told about changes via Subscribe.
//
// Every mutation is tagged with the epoch it started in. Logout and Dispose
// advance the epoch, so a restore or verification that resolves after the
// visitor has signed out is dropped instead of reviving the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/edumall/edumall/pkg/identitysdk"
)

// Remote is the identity service surface the store consumes.
type Remote interface {
	SendOTP(ctx context.Context, phone string) (*identitysdk.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, req identitysdk.VerifyOTPRequest) (*identitysdk.VerifyOTPResponse, error)
	GetUserProfile(ctx context.Context) (*identitysdk.User, error)
	Logout(ctx context.Context) error
	HasToken(ctx context.Context) bool
	ClearTokens(ctx context.Context) error
}

// Cache is the legacy user object kept for reload survival. LoadUser returns
// nil when nothing is cached.
type Cache interface {
	LoadUser(ctx context.Context) ([]byte, error)
	SaveUser(ctx context.Context, raw []byte) error
	ClearUser(ctx context.Context) error
}

var errMalformedUser = errors.New("session: profile payload has no user id")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store is the storefront session. It is safe for concurrent use.
type Store struct {
	remote Remote
	cache  Cache
	log    *slog.Logger

	// persistMu orders writes to the token pair and legacy cache so a late
	// commit cannot land after logout has wiped them.
	persistMu sync.Mutex

	mu        sync.RWMutex
	identity  *Identity
	restoring bool
	verifying int
	epoch     uint64
	disposed  bool
	subs      map[uint64]func(Snapshot)
	nextSub   uint64
}

// New returns a Store that reports loading until Restore completes.
func New(remote Remote, cache Cache, opts ...Option) *Store {
	s := &Store{
		remote:    remote,
		cache:     cache,
		log:       slog.Default(),
		restoring: true,
		subs:      make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "session")
	return s
}

// Restore resolves the startup session from the persisted token or, failing
// that, the legacy user cache. Errors are logged and never returned.
func (s *Store) Restore(ctx context.Context) {
	epoch, ok := s.currentEpoch()
	if !ok {
		return
	}
	defer s.finishRestore()

	if s.remote.HasToken(ctx) {
		user, err := s.remote.GetUserProfile(ctx)
		if err == nil && (user == nil || user.ID == "") {
			err = errMalformedUser
		}
		if err != nil {
			s.log.WarnContext(ctx, "session restore failed, clearing credentials", "error", err)
			s.wipePersisted(ctx)
			return
		}
		id := IdentityFromUser(*user)
		if !s.commit(ctx, epoch, id) {
			s.log.DebugContext(ctx, "session restore result discarded")
		}
		return
	}

	raw, err := s.cache.LoadUser(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "legacy user cache unreadable", "error", err)
		return
	}
	if raw == nil {
		return
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil || id.ID == "" {
		s.log.DebugContext(ctx, "discarding malformed legacy user cache", "error", err)
		if err := s.cache.ClearUser(ctx); err != nil {
			s.log.WarnContext(ctx, "failed to clear legacy user cache", "error", err)
		}
		return
	}
	s.setIdentity(ctx, epoch, id)
}

// RequestCode asks the identity service to send a code to phone. The caller
// validates phone first.
func (s *Store) RequestCode(ctx context.Context, phone string) bool {
	if s.isDisposed() {
		return false
	}
	if _, err := s.remote.SendOTP(ctx, phone); err != nil {
		s.log.WarnContext(ctx, "send otp failed", "phone", maskPhone(phone), "error", err)
		return false
	}
	return true
}

// VerifyAndLogin exchanges phone and code for an existing account's session.
func (s *Store) VerifyAndLogin(ctx context.Context, phone, code string) bool {
	return s.verify(ctx, identitysdk.VerifyOTPRequest{Phone: phone, OTP: code})
}

// VerifyAndRegister is VerifyAndLogin carrying the profile for a new account.
func (s *Store) VerifyAndRegister(ctx context.Context, phone, code string, p Profile) bool {
	return s.verify(ctx, identitysdk.VerifyOTPRequest{
		Phone:     phone,
		OTP:       code,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
	})
}

func (s *Store) verify(ctx context.Context, req identitysdk.VerifyOTPRequest) bool {
	epoch, ok := s.beginVerify()
	if !ok {
		return false
	}
	defer s.endVerify()

	resp, err := s.remote.VerifyOTP(ctx, req)
	if err != nil {
		s.log.WarnContext(ctx, "verify otp failed", "phone", maskPhone(req.Phone), "error", err)
		return false
	}
	if resp.User.ID == "" {
		s.log.WarnContext(ctx, "verify otp returned no user, dropping tokens", "phone", maskPhone(req.Phone))
		s.persistMu.Lock()
		if err := s.remote.ClearTokens(context.WithoutCancel(ctx)); err != nil {
			s.log.WarnContext(ctx, "failed to clear tokens", "error", err)
		}
		s.persistMu.Unlock()
		return false
	}

	if !s.commit(ctx, epoch, IdentityFromUser(resp.User)) {
		s.log.InfoContext(ctx, "late verification result discarded", "phone", maskPhone(req.Phone))
		// The client already persisted the pair; drop it unless another
		// sign-in owns the session now.
		if _, signedIn := s.Identity(); !signedIn {
			s.persistMu.Lock()
			if err := s.remote.ClearTokens(context.WithoutCancel(ctx)); err != nil {
				s.log.WarnContext(ctx, "failed to clear abandoned tokens", "error", err)
			}
			s.persistMu.Unlock()
		}
		return false
	}
	return true
}

// Logout signs the visitor out. The remote notify is best effort. Local state
// is always cleared.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.identity = nil
	s.mu.Unlock()
	s.notify()

	if s.remote.HasToken(ctx) {
		if err := s.remote.Logout(ctx); err != nil {
			s.log.WarnContext(ctx, "remote logout failed", "error", err)
		}
	}
	s.wipePersisted(context.WithoutCancel(ctx))
}

// Dispose drops subscribers and retires the store. Further calls are no-ops.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.disposed = true
	s.identity = nil
	s.restoring = false
	s.verifying = 0
	clear(s.subs)
}

// Identity returns the signed-in account, if any.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// IsAuthenticated reports whether an Identity is set.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// IsLoading is true while Restore or a verification is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restoring || s.verifying > 0
}

// Snapshot returns the identity and flags read under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to be called after every state change. Calls happen
// on the goroutine that made the change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Authenticated: s.identity != nil,
		Loading:       s.restoring || s.verifying > 0,
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) isDisposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

func (s *Store) currentEpoch() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch, !s.disposed
}

func (s *Store) finishRestore() {
	s.mu.Lock()
	changed := s.restoring
	s.restoring = false
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) beginVerify() (uint64, bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return 0, false
	}
	s.verifying++
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()
	return epoch, true
}

func (s *Store) endVerify() {
	s.mu.Lock()
	if s.verifying > 0 {
		s.verifying--
	}
	s.mu.Unlock()
	s.notify()
}

// commit sets the identity and mirrors it to the legacy cache, unless the
// epoch moved on or the caller gave up.
func (s *Store) commit(ctx context.Context, epoch uint64, id Identity) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if !s.setIdentity(ctx, epoch, id) {
		return false
	}

	raw, err := json.Marshal(id)
	if err == nil {
		err = s.cache.SaveUser(ctx, raw)
	}
	if err != nil {
		s.log.WarnContext(ctx, "failed to write legacy user cache", "error", err)
	}
	return true
}

func (s *Store) setIdentity(ctx context.Context, epoch uint64, id Identity) bool {
	s.mu.Lock()
	if s.disposed || s.epoch != epoch || ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.identity = &id
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) wipePersisted(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.remote.ClearTokens(ctx); err != nil {
		s.log.WarnContext(ctx, "failed to clear tokens", "error", err)
	}
	if err := s.cache.ClearUser(ctx); err != nil {
		s.log.WarnContext(ctx, "failed to clear legacy user cache", "error", err)
	}
}
