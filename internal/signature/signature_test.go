package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/louiezhelee-uway/kyc-system/logging"
)

func hexDigest(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifier(t *testing.T) {
	logger := logging.GetSugaredLogger()
	body := []byte(`{"order_id":"T1","buyer_email":"a@b.com"}`)

	t.Run("ValidSignatureAccepted", func(t *testing.T) {
		v := WebhookVerifier{Secret: "topsecret", Logger: logger}
		err := v.Verify(body, hexDigest("topsecret", body))
		assert.NoError(t, err)
	})

	t.Run("MutatedBodyRejected", func(t *testing.T) {
		v := WebhookVerifier{Secret: "topsecret", Logger: logger}
		sig := hexDigest("topsecret", body)

		mutated := make([]byte, len(body))
		copy(mutated, body)
		mutated[0] ^= 0x01

		err := v.Verify(mutated, sig)
		assert.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("MutatedSignatureRejected", func(t *testing.T) {
		v := WebhookVerifier{Secret: "topsecret", Logger: logger}
		sig := []byte(hexDigest("topsecret", body))
		if sig[0] == 'a' {
			sig[0] = 'b'
		} else {
			sig[0] = 'a'
		}

		err := v.Verify(body, string(sig))
		assert.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("MissingSignatureRejected", func(t *testing.T) {
		v := WebhookVerifier{Secret: "topsecret", Logger: logger}
		err := v.Verify(body, "")
		assert.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("NoSecretUnsignedAccepted", func(t *testing.T) {
		v := WebhookVerifier{Secret: "", Logger: logger}
		err := v.Verify(body, "")
		assert.NoError(t, err)
	})

	t.Run("NoSecretSignedRejected", func(t *testing.T) {
		v := WebhookVerifier{Secret: "", Logger: logger}
		err := v.Verify(body, hexDigest("whatever", body))
		assert.ErrorIs(t, err, ErrUnverifiable)
	})
}

func TestSigner(t *testing.T) {
	t.Run("DigestMatchesCanonicalForm", func(t *testing.T) {
		s := Signer{Secret: "provider-secret"}

		sig, err := s.Sign("1700000000", "POST", "/resources/applicants", []byte(`{"a":1}`))
		assert.NoError(t, err)

		expected := hexDigest("provider-secret", []byte("1700000000POST/resources/applicants{\"a\":1}"))
		assert.Equal(t, expected, sig)
	})

	t.Run("NilBody", func(t *testing.T) {
		s := Signer{Secret: "provider-secret"}

		sig, err := s.Sign("1700000000", "GET", "/resources/applicants/abc/review", nil)
		assert.NoError(t, err)

		expected := hexDigest("provider-secret", []byte("1700000000GET/resources/applicants/abc/review"))
		assert.Equal(t, expected, sig)
	})

	t.Run("MissingSecretFails", func(t *testing.T) {
		s := Signer{}
		_, err := s.Sign("1700000000", "GET", "/x", nil)
		assert.ErrorIs(t, err, ErrNoSecret)
	})
}
