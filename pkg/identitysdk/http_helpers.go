package identitysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an unauthenticated request with an optional JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.send(ctx, method, path, body, "")
}

func (c *Client) send(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// doAuthRequest sends a bearer-authenticated request. An access token that is
// known to be expired is refreshed up front, and a 401 answer triggers one
// refresh and retry.
func (c *Client) doAuthRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	t, err := c.tokens.LoadTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if t.IsZero() {
		return nil, ErrNoToken
	}

	refreshed := false
	if !t.ExpiresAt.IsZero() && !c.now().Before(t.ExpiresAt) && t.RefreshToken != "" {
		if t, err = c.refresh(ctx, t); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := c.send(ctx, method, path, body, t.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || refreshed || t.RefreshToken == "" {
		return resp, nil
	}

	drain(resp)
	if t, err = c.refresh(ctx, t); err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, t.AccessToken)
}

// decodeJSON decodes the response into target when the status matches,
// otherwise it returns the parsed *APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatusNoContent returns a typed error unless the response is 204.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, bodyBytes)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

var errNoRefreshToken = errors.New("identitysdk: access token rejected and no refresh token available")
