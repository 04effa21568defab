package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read side of a verified token payload.
type AuthClaims interface {
	Subject() string
	UserID() string
	TokenType() TokenType
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claims structure. The wire contract is
// {sub, type, iat, exp}; any client verifying tokens independently relies on
// exactly these fields.
type JWTClaims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"type"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the owning user id carried in the subject claim.
func (c *JWTClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// TokenType returns the type claim.
func (c *JWTClaims) TokenType() TokenType {
	return c.Type
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

// newClaims builds the payload for a token of the given type.
func newClaims(userID string, typ TokenType, issuedAt time.Time, ttl time.Duration, issuer string, audience []string) *JWTClaims {
	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Type: typ,
	}
}
