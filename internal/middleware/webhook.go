package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/louiezhelee-uway/kyc-system/internal/signature"
)

const signatureHeader = "X-Webhook-Signature"

// VerifyWebhookSignature checks the raw body against X-Webhook-Signature
// before the handler sees the request, then restores the body for decoding.
// A mismatch or an unverifiable signature rejects with 401 and no detail.
func VerifyWebhookSignature(secret string) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		verifier := signature.WebhookVerifier{Secret: secret, Logger: sugar}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				sugar.Error("failed to read webhook body", zap.Error(err))
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			r.Body.Close()

			if err := verifier.Verify(body, r.Header.Get(signatureHeader)); err != nil {
				if errors.Is(err, signature.ErrUnverifiable) {
					sugar.Error("webhook carries a signature but no secret is configured")
				} else {
					sugar.Errorw("webhook signature rejected", "error", err)
				}
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))

			h.ServeHTTP(w, r)
		})
	}
}
