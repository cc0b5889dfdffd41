package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingSubject   = errors.New("missing subject in claims")
)

// Claims are the claims the identity provider puts on access tokens.
// The control plane only verifies tokens, it never mints them.
type Claims struct {
	jwt.RegisteredClaims
	Email    string   `json:"email,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// UserUUID parses the token subject as the user id
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TenantUUID parses the tenant_id claim, if present
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// HasRole reports whether the token carries the given role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenVerifier validates HS256 access tokens issued by the identity
// provider with a shared secret
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier from the auth configuration
func NewTokenVerifier(cfg config.AuthConfig) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// Verify parses and validates a token, returning its claims
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
