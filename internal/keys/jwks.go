package keys

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/harborlight-org/tokend/internal/core"
)

// MarshalJWKS renders the public key as an RFC 7517 JWK Set document,
// as served from /.well-known/jwks.json.
func MarshalJWKS(keyID string, pub *rsa.PublicKey) ([]byte, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, fmt.Errorf("converting public key to JWK: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

var _ core.KeySource = (*RemoteSource)(nil)

// RemoteSource verifies against a published JWKS endpoint. It cannot
// sign: SigningKey always returns core.ErrNoSigningKey. Used by
// verify-only deployments and the CLI verify command.
type RemoteSource struct {
	url   string
	keyID string
	cache *jwk.Cache
}

func NewRemoteSource(ctx context.Context, jwksURL, keyID string) (*RemoteSource, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(
		jwksURL,
		jwk.WithMinRefreshInterval(15*time.Minute),
		jwk.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	); err != nil {
		return nil, fmt.Errorf("registering JWKS endpoint: %w", err)
	}
	return &RemoteSource{
		url:   jwksURL,
		keyID: keyID,
		cache: cache,
	}, nil
}

func (r *RemoteSource) KeyID() string {
	return r.keyID
}

func (r *RemoteSource) SigningKey(_ context.Context) (*rsa.PrivateKey, error) {
	return nil, core.ErrNoSigningKey
}

func (r *RemoteSource) VerificationKey(ctx context.Context) (*rsa.PublicKey, error) {
	set, err := r.cache.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	var key jwk.Key
	if r.keyID != "" {
		k, ok := set.LookupKeyID(r.keyID)
		if !ok {
			return nil, fmt.Errorf("key %q not found in JWKS", r.keyID)
		}
		key = k
	} else {
		k, ok := set.Key(0)
		if !ok {
			return nil, fmt.Errorf("JWKS document is empty")
		}
		key = k
	}

	var pub rsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("extracting RSA public key: %w", err)
	}
	return &pub, nil
}
