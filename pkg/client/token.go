package client

import (
	"context"

	"github.com/harborlight-org/tokend/internal/api"
	"github.com/harborlight-org/tokend/internal/core"
)

// VerifyToken introspects a token, optionally against a named policy.
func (c *Client) VerifyToken(ctx context.Context, token, policy string) (*api.VerifyResponse, string, error) {
	payload := api.VerifyPayload{
		Token:  token,
		Policy: policy,
	}
	var resp api.VerifyResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.VerifyTokenRoute).
		build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// RevokeToken puts a token on the server's revocation list by its ID.
// Requires an admin session.
func (c *Client) RevokeToken(ctx context.Context, jti string) (*core.TokenMetadata, string, error) {
	var meta core.TokenMetadata
	correlation, err := c.post(ctx, c.url().
		setPath(api.RevokeTokenRoute).
		setPathParam("jti", jti).
		build(), nil, &meta)
	if err != nil {
		return nil, correlation, err
	}
	return &meta, correlation, nil
}
