package identitysdk

import (
	"context"
	"sync"
	"time"
)

// Tokens is the persisted credential. ExpiresAt is derived from the
// expires_in the service returned.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// IsZero reports whether no access token is held.
func (t Tokens) IsZero() bool { return t.AccessToken == "" }

// TokenStore persists the token pair between process restarts. LoadTokens
// returns a zero Tokens and nil error when nothing is stored.
type TokenStore interface {
	LoadTokens(ctx context.Context) (Tokens, error)
	SaveTokens(ctx context.Context, t Tokens) error
	ClearTokens(ctx context.Context) error
}

// MemoryTokenStore keeps tokens for the life of the process only.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

func (m *MemoryTokenStore) LoadTokens(context.Context) (Tokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens, nil
}

func (m *MemoryTokenStore) SaveTokens(_ context.Context, t Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = t
	return nil
}

func (m *MemoryTokenStore) ClearTokens(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	return nil
}

func tokensFromPair(p TokenPair, now time.Time) Tokens {
	t := Tokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	if p.ExpiresIn > 0 {
		t.ExpiresAt = now.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return t
}
