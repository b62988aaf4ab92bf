package domain

import "time"

// TokenPair is what a successful verification or refresh returns: the
// short-lived access token (JWT) and the opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string        // typically "Bearer"
	ExpiresIn    time.Duration // until access token expiry
}

// RefreshToken models the stored refresh token record in the DB.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	SessionID string // persists across refreshes, revoked together on logout
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
