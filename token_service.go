package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies the four token kinds. Non-access tokens
// are persisted on issuance so they can be revoked before natural expiry.
type TokenService interface {
	GenerateAuthTokens(ctx context.Context, user *User) (*AuthTokenPair, error)
	GenerateResetPasswordToken(ctx context.Context, email string) (string, error)
	GenerateVerifyEmailToken(ctx context.Context, user *User) (string, error)
	VerifyToken(ctx context.Context, tokenString string, expected TokenType) (*Token, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	cfg    Config
	repo   RepositoryManager
	logger Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, repo RepositoryManager) *TokenServiceImpl {
	return &TokenServiceImpl{
		cfg:    cfg,
		repo:   repo,
		logger: defLogger{},
	}
}

func (ts *TokenServiceImpl) WithLogger(logger Logger) *TokenServiceImpl {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// GenerateAuthTokens issues an access/refresh pair. The refresh token is
// persisted, the access token is not.
func (ts *TokenServiceImpl) GenerateAuthTokens(ctx context.Context, user *User) (*AuthTokenPair, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, errors.New("user is required to issue auth tokens", errors.CategoryBadInput)
	}

	access, accessExpires, err := ts.sign(user.ID, TokenTypeAccess, ts.cfg.GetAccessTokenTTL())
	if err != nil {
		return nil, err
	}

	refresh, refreshExpires, err := ts.sign(user.ID, TokenTypeRefresh, ts.cfg.GetRefreshTokenTTL())
	if err != nil {
		return nil, err
	}

	if _, err := ts.repo.Tokens().Save(ctx, &Token{
		Token:     refresh,
		UserID:    user.ID,
		Type:      TokenTypeRefresh,
		ExpiresAt: refreshExpires,
	}); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist refresh token")
	}

	return &AuthTokenPair{
		Access:  TokenInfo{Token: access, Expires: accessExpires},
		Refresh: TokenInfo{Token: refresh, Expires: refreshExpires},
	}, nil
}

// GenerateResetPasswordToken issues a reset token for the account that owns
// the email. Issuing a new token invalidates older outstanding reset tokens,
// so at most one is live per user.
func (ts *TokenServiceImpl) GenerateResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := ts.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	return ts.issueScopedToken(ctx, user, TokenTypeResetPassword, ts.cfg.GetResetPasswordTokenTTL())
}

// GenerateVerifyEmailToken issues a verify-email token, replacing any
// outstanding one for the user.
func (ts *TokenServiceImpl) GenerateVerifyEmailToken(ctx context.Context, user *User) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", errors.New("user is required to issue a verification token", errors.CategoryBadInput)
	}

	return ts.issueScopedToken(ctx, user, TokenTypeVerifyEmail, ts.cfg.GetVerifyEmailTokenTTL())
}

func (ts *TokenServiceImpl) issueScopedToken(ctx context.Context, user *User, typ TokenType, ttl time.Duration) (string, error) {
	if err := ts.repo.Tokens().DeleteAllForUser(ctx, user.ID, typ); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to invalidate outstanding tokens")
	}

	signed, expires, err := ts.sign(user.ID, typ, ttl)
	if err != nil {
		return "", err
	}

	if _, err := ts.repo.Tokens().Save(ctx, &Token{
		Token:     signed,
		UserID:    user.ID,
		Type:      typ,
		ExpiresAt: expires,
	}); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to persist token")
	}

	return signed, nil
}

// VerifyToken decodes and checks signature and expiry, enforces the expected
// type against the type claim, then resolves the persisted record. Access
// tokens are stateless and skip the store entirely.
func (ts *TokenServiceImpl) VerifyToken(ctx context.Context, tokenString string, expected TokenType) (*Token, error) {
	if !expected.IsValid() {
		return nil, errors.New("unknown token type", errors.CategoryBadInput).
			WithMetadata(map[string]any{"type": string(expected)})
	}

	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Type != expected {
		ts.logger.Warn("token type claim mismatch: expected %s got %s", expected, claims.Type)
		return nil, ErrInvalidToken
	}

	if expected == TokenTypeAccess {
		userID, err := uuid.Parse(claims.UserID())
		if err != nil {
			return nil, ErrInvalidToken
		}
		return &Token{
			Token:     tokenString,
			UserID:    userID,
			Type:      TokenTypeAccess,
			ExpiresAt: claims.Expires(),
		}, nil
	}

	record, err := ts.repo.Tokens().FindLive(ctx, tokenString, expected)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (ts *TokenServiceImpl) sign(userID uuid.UUID, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	claims := newClaims(userID.String(), typ, now, ttl, ts.cfg.GetIssuer(), ts.cfg.GetAudience())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(ts.cfg.GetSigningKey()))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, claims.Expires(), nil
}

func (ts *TokenServiceImpl) parse(tokenString string) (*JWTClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if issuer := ts.cfg.GetIssuer(); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if audience := ts.cfg.GetAudience(); len(audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token verification encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(ts.cfg.GetSigningKey()), nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token verification could not decode claims")
		return nil, ErrInvalidToken
	}

	return claims, nil
}
