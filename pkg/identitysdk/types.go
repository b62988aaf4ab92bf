package identitysdk

import "time"

// User is the profile payload returned by the identity service.
type User struct {
	ID              string    `json:"id"`
	Phone           string    `json:"phone"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email,omitempty"`
	IsPhoneVerified bool      `json:"is_phone_verified"`
	CreatedAt       time.Time `json:"created_at,omitzero"`

	// DateJoined is sent by older deployments instead of CreatedAt.
	DateJoined time.Time `json:"date_joined,omitzero"`
}

// JoinedAt returns CreatedAt, falling back to DateJoined.
func (u User) JoinedAt() time.Time {
	if !u.CreatedAt.IsZero() {
		return u.CreatedAt
	}
	return u.DateJoined
}

// SendOTPRequest asks the service to dispatch a one-time code.
type SendOTPRequest struct {
	Phone string `json:"phone"`
}

// SendOTPResponse acknowledges a dispatched code.
type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// DevCode echoes the code back when the service runs with code echo
	// enabled. Never set in production.
	DevCode string `json:"dev_code,omitempty"`
}

// VerifyOTPRequest exchanges a phone and code for a session. The name and
// email fields are only read when the phone has no account yet.
type VerifyOTPRequest struct {
	Phone     string `json:"phone"`
	OTP       string `json:"otp"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// VerifyOTPResponse carries the signed-in user and the issued tokens.
type VerifyOTPResponse struct {
	Success bool      `json:"success"`
	Created bool      `json:"created,omitempty"`
	User    User      `json:"user"`
	Tokens  TokenPair `json:"tokens"`
}

// TokenPair is the credential issued by the service.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest optionally names the refresh token to revoke alongside the
// bearer's session.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the error envelope written by the service.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
