package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// PasswordGenerator produces initial passwords for batch-created accounts.
// It is an interface so tests can substitute a deterministic implementation.
type PasswordGenerator interface {
	Generate() (string, error)
}

// RandomPasswordGenerator emits URL-safe random passwords from crypto/rand.
type RandomPasswordGenerator struct {
	// Bytes of entropy per password. Defaults to 18 (24 encoded characters).
	Entropy int
}

// Generate returns a new random password.
func (g RandomPasswordGenerator) Generate() (string, error) {
	entropy := g.Entropy
	if entropy <= 0 {
		entropy = 18
	}
	buf := make([]byte, entropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
