package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Sub        int64  `json:"sub"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	BusinessID string `json:"business_id"`
	Scope      string `json:"scope"`
	jwt.RegisteredClaims
}

func NewAccessToken(sub int64, email, role, businessID, scope, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:        sub,
		Email:      email,
		Role:       role,
		BusinessID: businessID,
		Scope:      scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{"venue-checkin-api"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// NewScannerSession issues a short-lived token for door staff devices. The
// scanner scope only allows QR processing, not reservation edits.
func NewScannerSession(businessID, secret string, ttl time.Duration) (string, error) {
	return NewAccessToken(0, "", "scanner", businessID, "checkin.scan:write checkin.scan:read", secret, ttl)
}
