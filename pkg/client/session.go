package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/harborlight-org/tokend/internal/api"
)

// Session is the server's answer to a successful session exchange. The
// token itself arrives in both the response body cookie and, for
// non-browser callers, via SessionToken.
type Session struct {
	TokenID      string
	ExpiresAt    string
	SessionToken string
}

// IssueSessionOptions contains optional parameters for a session exchange.
type IssueSessionOptions struct {
	// Provider names the upstream identity provider. If empty, the
	// server attempts auto-discovery from the token's issuer.
	Provider string

	// Timezone is the caller's IANA zone name.
	Timezone string
}

// IssueSession exchanges an upstream identity token for a tokend session.
func (c *Client) IssueSession(
	ctx context.Context,
	idToken string,
	opts IssueSessionOptions,
) (*Session, string, error) {
	payload := api.SessionPayload{
		Provider: opts.Provider,
		Timezone: opts.Timezone,
	}
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshalling payload: %w", err)
	}

	// done manually: the Authorization header carries the upstream ID
	// token here, not a tokend session, so c.do must not inject one.
	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.SessionRoute).
		build(), bytes.NewReader(marshalled))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+idToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, correlationFromResponse(resp), fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, correlationFromResponse(resp), parseErrorResponse(resp)
	}

	var result api.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, correlationFromResponse(resp), fmt.Errorf("decoding response: %w", err)
	}

	session := &Session{
		TokenID:   result.TokenID,
		ExpiresAt: result.ExpiresAt.String(),
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "org-jwt" {
			session.SessionToken = cookie.Value
		}
	}

	return session, correlationFromResponse(resp), nil
}

// SignOut revokes the client's own session.
func (c *Client) SignOut(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.url().
		setPath(api.SessionRoute).
		build(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}
