package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint hashes a token value so audit entries can reference a
// token without storing it.
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}
