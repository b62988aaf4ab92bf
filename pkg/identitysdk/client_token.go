package identitysdk

import (
	"context"
	"fmt"
	"net/http"
)

// Refresh rotates the persisted refresh token.
func (c *Client) Refresh(ctx context.Context) error {
	t, err := c.tokens.LoadTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	_, err = c.refresh(ctx, t)
	return err
}

func (c *Client) refresh(ctx context.Context, stale Tokens) (Tokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have rotated while we waited.
	current, err := c.tokens.LoadTokens(ctx)
	if err != nil {
		return Tokens{}, fmt.Errorf("failed to load tokens: %w", err)
	}
	if current.AccessToken != stale.AccessToken && !current.IsZero() {
		return current, nil
	}
	if current.RefreshToken == "" {
		return Tokens{}, errNoRefreshToken
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/token/refresh", RefreshRequest{RefreshToken: current.RefreshToken})
	if err != nil {
		return Tokens{}, err
	}

	var pair TokenPair
	if err := decodeJSON(resp, &pair, http.StatusOK); err != nil {
		return Tokens{}, fmt.Errorf("failed to refresh token: %w", err)
	}

	next := tokensFromPair(pair, c.now())
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := c.tokens.SaveTokens(ctx, next); err != nil {
		return Tokens{}, fmt.Errorf("failed to persist tokens: %w", err)
	}
	return next, nil
}
