package identitysdk

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to the identity service on behalf of one storefront session.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	tokens TokenStore

	// refreshMu serialises token refreshes so concurrent 401s rotate once.
	refreshMu sync.Mutex
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 10 second timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// New creates a client. A nil TokenStore keeps tokens in memory.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasToken reports whether an access token is persisted. Storage errors
// count as no token.
func (c *Client) HasToken(ctx context.Context) bool {
	t, err := c.tokens.LoadTokens(ctx)
	return err == nil && !t.IsZero()
}

// AccessToken returns the persisted access token, if any.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	t, err := c.tokens.LoadTokens(ctx)
	if err != nil {
		return "", err
	}
	if t.IsZero() {
		return "", ErrNoToken
	}
	return t.AccessToken, nil
}

// ClearTokens erases the persisted token pair.
func (c *Client) ClearTokens(ctx context.Context) error {
	return c.tokens.ClearTokens(ctx)
}
