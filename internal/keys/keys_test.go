package keys

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harborlight-org/tokend/internal/core"
)

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := Generate(2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	encoded, err := EncodePrivateKeyPEM(key)
	if err != nil {
		t.Fatalf("encoding key: %v", err)
	}

	parsed, err := ParsePrivateKeyPEM(encoded)
	if err != nil {
		t.Fatalf("parsing key: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed key does not match original")
	}
}

func TestGenerateRejectsWeakKeys(t *testing.T) {
	if _, err := Generate(1024); err == nil {
		t.Error("expected error for 1024-bit key")
	}
}

func TestParsePrivateKeyPEMGarbage(t *testing.T) {
	if _, err := ParsePrivateKeyPEM([]byte("not a pem")); err == nil {
		t.Error("expected error for non-PEM input")
	}
}

func TestStaticSourceWithoutKey(t *testing.T) {
	src := NewStaticSource("k1", nil)
	if _, err := src.SigningKey(context.Background()); !errors.Is(err, core.ErrNoSigningKey) {
		t.Errorf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestMarshalJWKS(t *testing.T) {
	key, err := Generate(2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	doc, err := MarshalJWKS("2025-09", &key.PublicKey)
	if err != nil {
		t.Fatalf("marshaling JWKS: %v", err)
	}

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(doc, &set); err != nil {
		t.Fatalf("unmarshaling JWKS document: %v", err)
	}
	if len(set.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(set.Keys))
	}

	k := set.Keys[0]
	if k["kid"] != "2025-09" {
		t.Errorf("kid = %v, want 2025-09", k["kid"])
	}
	if k["kty"] != "RSA" {
		t.Errorf("kty = %v, want RSA", k["kty"])
	}
	if k["alg"] != "RS256" {
		t.Errorf("alg = %v, want RS256", k["alg"])
	}
	if _, leaked := k["d"]; leaked {
		t.Error("JWKS document must not contain private key material")
	}
}
