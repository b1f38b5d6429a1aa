package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	extended     = alphanumeric + "-._~"

	VerificationTokenLength = 32
	APIKeyLength            = 32
)

// Issuer generates opaque random tokens from a crypto-grade source.
type Issuer struct{}

func (Issuer) generate(length int, alphabet string) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// VerificationToken returns a token suitable for single-session verification
// links: 32 alphanumeric characters, which is well past the birthday bound for
// any realistic number of verifications.
func (i Issuer) VerificationToken() (string, error) {
	return i.generate(VerificationTokenLength, alphanumeric)
}

// APIKey returns an administrative key drawn from a wider alphabet.
func (i Issuer) APIKey() (string, error) {
	return i.generate(APIKeyLength, extended)
}
