package identitysdk

import (
	"context"
	"net/http"
)

// GetUserProfile fetches the profile of the token holder.
func (c *Client) GetUserProfile(ctx context.Context) (*User, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/v1/users/me", nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the session server-side. Tokens are left in place; callers
// clear them with ClearTokens whatever the outcome.
func (c *Client) Logout(ctx context.Context) error {
	t, err := c.tokens.LoadTokens(ctx)
	if err != nil {
		return err
	}
	if t.IsZero() {
		return ErrNoToken
	}

	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", LogoutRequest{RefreshToken: t.RefreshToken})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
