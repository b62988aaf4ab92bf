package store

import (
	"context"
	"errors"

	"github.com/edumall/edumall/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories so a Tx cannot open a nested transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	Challenges() ChallengeStore

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. The transaction is committed
	// when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByPhone looks a user up by their normalised 10 digit mobile number.
	GetUserByPhone(ctx context.Context, phone string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID). Returns
	// ErrAlreadyExists when the phone is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// MarkPhoneVerified sets is_phone_verified and bumps updated_at.
	MarkPhoneVerified(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1, sets updated_at.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeSessionRefreshTokens revokes every token of a user's session (logout).
	RevokeSessionRefreshTokens(ctx context.Context, userID, sessionID string) error

	// HasActiveSession reports whether the session still holds an unrevoked,
	// unexpired refresh token.
	HasActiveSession(ctx context.Context, userID, sessionID string) (bool, error)

	DeleteExpiredRefreshTokens(ctx context.Context) error
}

// ChallengeStore keeps one outstanding OTP challenge per phone. Both the
// sqlite driver and the redis driver implement it.
type ChallengeStore interface {
	// PutChallenge creates or replaces the challenge for c.Phone.
	PutChallenge(ctx context.Context, c domain.Challenge) error

	GetChallenge(ctx context.Context, phone string) (domain.Challenge, error)

	// IncrementChallengeAttempts bumps the failed attempt counter and returns
	// the updated challenge.
	IncrementChallengeAttempts(ctx context.Context, phone string) (domain.Challenge, error)

	DeleteChallenge(ctx context.Context, phone string) error

	DeleteExpiredChallenges(ctx context.Context) error
}
