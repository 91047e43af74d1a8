package auth

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims is the claim set carried by every bearer token
type JWTClaims struct {
	jwt.RegisteredClaims
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func newJWTClaims(identity Identity, roles []string) *JWTClaims {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: identity.ID.String(),
		},
		Email:    identity.Email,
		Username: identity.Username,
	}

	if len(roles) > 0 {
		claims.Roles = slices.Clone(roles)
	}

	return claims
}

// Identity converts the claims into the canonical Identity. The subject must
// be a UUID.
func (c *JWTClaims) Identity() (Identity, error) {
	id, err := uuid.Parse(c.RegisteredClaims.Subject)
	if err != nil || id == uuid.Nil {
		return Identity{}, ErrTokenMalformed
	}

	return Identity{
		ID:       id,
		Username: c.Username,
		Email:    c.Email,
		Roles:    slices.Clone(c.Roles),
	}, nil
}

// HasRole checks if the token carries the given role
func (c *JWTClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
