package identity

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/harborlight-org/tokend/internal/config"
	"github.com/harborlight-org/tokend/internal/core"
)

var _ core.IdentityVerifier = (*StaticVerifier)(nil)

// StaticVerifier maps fixed token strings to identities. Dev and test
// use only; an empty token map fails every verification.
type StaticVerifier struct {
	name     string
	tokenMap map[string]staticIdentity
}

type staticIdentity struct {
	Subject       string `mapstructure:"sub"`
	Email         string `mapstructure:"email"`
	EmailVerified bool   `mapstructure:"email_verified"`
	Name          string `mapstructure:"name"`
	Picture       string `mapstructure:"picture"`
}

func NewStaticVerifier(cfg config.ProviderConfig) (*StaticVerifier, error) {
	rawMap, ok := cfg.Config["token_map"].(map[string]any)
	if !ok {
		return &StaticVerifier{name: cfg.Name}, nil
	}

	tokenMap := make(map[string]staticIdentity, len(rawMap))
	for token, raw := range rawMap {
		var ident staticIdentity
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result: &ident,
		})
		if err != nil {
			return nil, fmt.Errorf("creating decoder for static provider '%s': %w", cfg.Name, err)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("decoding token map entry for static provider '%s': %w", cfg.Name, err)
		}
		tokenMap[token] = ident
	}

	return &StaticVerifier{
		name:     cfg.Name,
		tokenMap: tokenMap,
	}, nil
}

func (s *StaticVerifier) Name() string {
	return s.name
}

func (s *StaticVerifier) Verify(_ context.Context, rawToken string) (*core.Identity, error) {
	ident, ok := s.tokenMap[rawToken]
	if !ok {
		return nil, fmt.Errorf("unknown static token")
	}
	return &core.Identity{
		Subject:       ident.Subject,
		Email:         ident.Email,
		EmailVerified: ident.EmailVerified,
		Name:          ident.Name,
		Picture:       ident.Picture,
		Provider:      s.name,
	}, nil
}
