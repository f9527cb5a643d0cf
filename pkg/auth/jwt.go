package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims this service expects on an operator or
// service-account bearer token, mirroring the teacher's HelmClaims
// (registered claims plus a role list) but without the teacher's
// multi-tenant TenantID binding, which this single-tenant gate has no
// use for.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Validator validates JWT tokens signed with a shared HMAC secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator from a shared secret. A nil/empty
// secret yields a Validator that rejects every token, matching the
// teacher's "nil KeySet fails closed" convention.
func NewValidator(secret []byte) *Validator {
	return &Validator{secret: secret}
}

// Validate parses and validates a JWT token string.
func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("auth: validator has no secret configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("auth: token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	return claims, nil
}
