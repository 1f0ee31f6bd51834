// Package keys provides the signing/verification key collaborators.
// The service never generates or rotates keys at runtime; keygen is an
// explicit CLI operation.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/harborlight-org/tokend/internal/core"
)

var _ core.KeySource = (*StaticSource)(nil)

// StaticSource holds an in-memory RSA key pair. It backs both the
// file-loaded production path and generated dev/test keys.
type StaticSource struct {
	keyID string
	key   *rsa.PrivateKey
}

func NewStaticSource(keyID string, key *rsa.PrivateKey) *StaticSource {
	return &StaticSource{keyID: keyID, key: key}
}

// NewFileSource loads an RSA private key in PEM form (PKCS#1 or PKCS#8)
// from the given path.
func NewFileSource(path, keyID string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}
	return NewStaticSource(keyID, key), nil
}

func (s *StaticSource) KeyID() string {
	return s.keyID
}

func (s *StaticSource) SigningKey(_ context.Context) (*rsa.PrivateKey, error) {
	if s.key == nil {
		return nil, core.ErrNoSigningKey
	}
	return s.key, nil
}

func (s *StaticSource) VerificationKey(_ context.Context) (*rsa.PublicKey, error) {
	if s.key == nil {
		return nil, fmt.Errorf("no key material loaded")
	}
	return &s.key.PublicKey, nil
}

// Generate creates a new RSA key pair for the keygen command and tests.
func Generate(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("refusing to generate key smaller than 2048 bits")
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// ParsePrivateKeyPEM parses a PEM-encoded RSA private key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// EncodePrivateKeyPEM renders the key in PKCS#8 PEM form.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil
}
