package identitysdk

import (
	"context"
	"fmt"
	"net/http"
)

// SendOTP asks the service to text a one-time code to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) (*SendOTPResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/otp/send", SendOTPRequest{Phone: phone})
	if err != nil {
		return nil, err
	}

	var out SendOTPResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("identitysdk: send otp rejected: %s", out.Message)
	}
	return &out, nil
}

// VerifyOTP exchanges a code for a session. On success the issued token pair
// is persisted before the response is returned.
func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/otp/verify", req)
	if err != nil {
		return nil, err
	}

	var out VerifyOTPResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if !out.Success || out.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("identitysdk: verify otp returned no session")
	}

	if err := c.tokens.SaveTokens(ctx, tokensFromPair(out.Tokens, c.now())); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}
	return &out, nil
}
