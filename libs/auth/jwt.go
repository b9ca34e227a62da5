package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Subject is the authenticated principal (the "sub" claim).
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// HasRole reports whether the claims grant role. Admin implies staff.
func (c *Claims) HasRole(role string) bool {
	if c.Role == role {
		return true
	}
	return role == RoleStaff && c.Role == RoleAdmin
}

// SignHS256 issues a token for subject valid for ttl.
func SignHS256(subject, role string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
