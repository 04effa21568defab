package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenType is the closed enumeration of token kinds the service issues.
type TokenType string

const (
	// TokenTypeAccess is the short lived, stateless credential.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is the persisted, single use credential that mints a
	// new access/refresh pair.
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeResetPassword authorizes a password change.
	TokenTypeResetPassword TokenType = "resetPassword"
	// TokenTypeVerifyEmail authorizes flipping the email verified flag.
	TokenTypeVerifyEmail TokenType = "verifyEmail"
)

// IsValid checks membership in the enumeration.
func (t TokenType) IsValid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeResetPassword, TokenTypeVerifyEmail:
		return true
	default:
		return false
	}
}

// Persisted reports whether tokens of this type are written to the token
// store. Access tokens never are.
func (t TokenType) Persisted() bool {
	return t.IsValid() && t != TokenTypeAccess
}

// User is the user model. PasswordHash is excluded from every external
// representation.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Phone         string     `bun:"phone_number" json:"phone,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"role"`
	EmailVerified bool       `bun:"is_email_verified" json:"isEmailVerified"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// NormalizeEmail lowercases and trims the address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Token is a persisted non-access token. The signed string itself is the
// lookup key; Blacklisted marks a row invalid ahead of natural expiry.
type Token struct {
	bun.BaseModel `bun:"table:tokens,alias:tkn"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Token         string     `bun:"token,notnull,unique" json:"token"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"userId"`
	Type          TokenType  `bun:"type,notnull" json:"type"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expiresAt"`
	Blacklisted   bool       `bun:"blacklisted" json:"blacklisted"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// Live reports whether the record can still satisfy a verification at the
// given instant.
func (t *Token) Live(now time.Time) bool {
	return t != nil && !t.Blacklisted && now.Before(t.ExpiresAt)
}

// AuthTokenPair is the access/refresh pair returned by login, registration,
// and refresh rotation.
type AuthTokenPair struct {
	Access  TokenInfo `json:"access"`
	Refresh TokenInfo `json:"refresh"`
}

// TokenInfo carries a signed token string and its expiry.
type TokenInfo struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
