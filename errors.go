package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes exposed to API clients alongside the HTTP status.
const (
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenNotFound     = "TOKEN_NOT_FOUND"
	TextCodeUserNotFound      = "USER_NOT_FOUND"
	TextCodePasswordReset     = "PASSWORD_RESET_FAILED"
	TextCodeEmailVerification = "EMAIL_VERIFICATION_FAILED"
	TextCodeForbidden         = "INSUFFICIENT_RIGHTS"
)

// ErrDuplicateEmail is returned when a create or update would reuse an email
// already owned by another user.
var ErrDuplicateEmail = errors.New("email already taken", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail)

// ErrUserNotFound is returned when a lookup by id or email misses, or when a
// token's owner has been deleted since issuance.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound)

// ErrInvalidCredentials covers both unknown emails and password mismatches so
// callers cannot probe for account existence.
var ErrInvalidCredentials = errors.New("incorrect email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrMismatchedHashAndPassword is the raw bcrypt comparison failure.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrInvalidToken covers signature failures and type-claim mismatches.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken)

// ErrTokenExpired is returned when a token's exp claim is in the past.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for tokens that cannot be parsed at all.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenNotFound means the signature checked out but no live record backs
// the token: it was already consumed, revoked, or blacklisted.
var ErrTokenNotFound = errors.New("token not found", errors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound)

// ErrPasswordResetFailed is the only error the reset flow surfaces once the
// reset token has been verified, so internal causes do not leak.
var ErrPasswordResetFailed = errors.New("password reset failed", errors.CategoryAuth).
	WithTextCode(TextCodePasswordReset)

// ErrEmailVerificationFailed mirrors ErrPasswordResetFailed for the email
// verification flow.
var ErrEmailVerificationFailed = errors.New("email verification failed", errors.CategoryAuth).
	WithTextCode(TextCodeEmailVerification)

// ErrInsufficientRights is returned by the rights guard when the caller's role
// lacks a required permission.
var ErrInsufficientRights = errors.New("insufficient rights", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = errors.New("value must not be an empty string", errors.CategoryValidation)

// IsTokenExpiredError will check for expired tokens, including errors wrapped
// by the JWT library before the taxonomy conversion.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for parse failures.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
