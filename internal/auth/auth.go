package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Claims struct {
	jwt.RegisteredClaims
	Admin bool
}

// Manager issues and validates admin session tokens. The admin key itself is
// never stored: only its bcrypt hash is configured, and a successful exchange
// yields a short-lived JWT.
type Manager struct {
	JWTSecret    string
	AdminKeyHash string
}

// CheckAdminKey compares a presented secret key against the configured bcrypt
// hash.
func (m *Manager) CheckAdminKey(secretKey string) error {
	if m.AdminKeyHash == "" {
		return fmt.Errorf("admin key hash is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.AdminKeyHash), []byte(secretKey)); err != nil {
		return fmt.Errorf("admin key rejected: %w", err)
	}
	return nil
}

func (m *Manager) BuildJWT() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	})

	tokenString, err := token.SignedString([]byte(m.JWTSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (m *Manager) ValidateJWT(tokenString string) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(m.JWTSecret), nil
		})
	if err != nil {
		return fmt.Errorf("token error: %w", err)
	}

	if !token.Valid || !claims.Admin {
		return fmt.Errorf("token is not valid")
	}

	return nil
}
