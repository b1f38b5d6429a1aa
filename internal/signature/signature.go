package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrMismatch is returned when a supplied signature does not match the
	// digest computed over the raw body.
	ErrMismatch = errors.New("signature mismatch")

	// ErrUnverifiable is returned when a signature header is present but no
	// secret is configured to check it against.
	ErrUnverifiable = errors.New("signature present but no webhook secret configured")

	// ErrNoSecret is a configuration error: outbound requests can never be
	// sent unsigned.
	ErrNoSecret = errors.New("signing secret is not configured")
)

// WebhookVerifier checks inbound webhook bodies against the
// X-Webhook-Signature scheme: hex HMAC-SHA256 over the raw request body.
type WebhookVerifier struct {
	Secret string
	Logger *zap.SugaredLogger
}

// Verify compares the supplied hex signature against HMAC-SHA256(secret, body)
// in constant time. With no secret configured, unsigned requests pass in an
// explicit insecure mode that is logged every time; signed requests are
// rejected because they cannot be checked.
func (v WebhookVerifier) Verify(body []byte, supplied string) error {
	if v.Secret == "" {
		if supplied != "" {
			return ErrUnverifiable
		}
		v.Logger.Warn("webhook secret is not configured, accepting unsigned webhook")
		return nil
	}

	if supplied == "" {
		return ErrMismatch
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return ErrMismatch
	}
	return nil
}

// Signer produces the digest the provider expects on outbound requests:
// hex HMAC-SHA256 over ts + method + path + body, where ts is the request
// timestamp in whole seconds since epoch as a decimal string.
type Signer struct {
	Secret string
}

func (s Signer) Sign(ts string, method string, path string, body []byte) (string, error) {
	if s.Secret == "" {
		return "", fmt.Errorf("failed to sign %s %s: %w", method, path, ErrNoSecret)
	}

	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil)), nil
}
