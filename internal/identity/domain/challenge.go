package domain

import "time"

// Challenge is an outstanding one-time-code for a phone number. There is at
// most one per phone; sending a new code replaces the previous one.
type Challenge struct {
	Phone     string
	Secret    string    // TOTP secret (base32)
	IssuedAt  time.Time // the code is derived from the secret at this instant
	ExpiresAt time.Time
	Attempts  int
}

// Expired reports whether the challenge can no longer be redeemed at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
