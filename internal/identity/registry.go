package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harborlight-org/tokend/internal/config"
	"github.com/harborlight-org/tokend/internal/core"
)

// Registry holds the configured identity verifiers.
type Registry struct {
	verifiers map[string]core.IdentityVerifier
	issuerURL map[string]string // upstream issuer URL -> verifier name
}

func BuildRegistry(ctx context.Context, cfgs []config.ProviderConfig) (*Registry, error) {
	r := &Registry{
		verifiers: make(map[string]core.IdentityVerifier),
		issuerURL: make(map[string]string),
	}
	for _, cfg := range cfgs {
		switch cfg.Type {
		case "static":
			v, err := NewStaticVerifier(cfg)
			if err != nil {
				return nil, fmt.Errorf("building static provider %q: %w", cfg.Name, err)
			}
			r.verifiers[cfg.Name] = v
		case "oidc":
			v, err := NewOIDCVerifier(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("building oidc provider %q: %w", cfg.Name, err)
			}
			r.verifiers[cfg.Name] = v
			if url, ok := cfg.Config["issuer_url"].(string); ok {
				r.issuerURL[url] = cfg.Name
			}
		default:
			return nil, fmt.Errorf("unknown provider type %q for provider %q", cfg.Type, cfg.Name)
		}
	}
	return r, nil
}

func (r *Registry) Get(name string) (core.IdentityVerifier, bool) {
	v, ok := r.verifiers[name]
	return v, ok
}

// Identify picks the verifier for a token by its unverified "iss" claim.
// Static verifiers cannot be discovered this way and must be named
// explicitly.
func (r *Registry) Identify(rawToken string) (core.IdentityVerifier, error) {
	iss, err := extractIssuerURL(rawToken)
	if err != nil {
		return nil, err
	}
	name, ok := r.issuerURL[iss]
	if !ok {
		return nil, fmt.Errorf("no identity provider registered for issuer %q", iss)
	}
	return r.verifiers[name], nil
}

// extractIssuerURL reads the 'iss' claim from a JWT without verifying it.
func extractIssuerURL(tokenString string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	iss, ok := claims["iss"].(string)
	if !ok {
		return "", fmt.Errorf("token missing 'iss' claim")
	}
	return iss, nil
}
