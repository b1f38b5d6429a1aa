package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/louiezhelee-uway/kyc-system/internal/auth"
)

func ValidateAdminAuth(manager *auth.Manager) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is missing", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			if err := manager.ValidateJWT(tokenString); err != nil {
				sugar.Errorw("Invalid token", "error", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			h.ServeHTTP(w, r)
		})
	}
}
