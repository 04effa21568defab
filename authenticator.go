package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther orchestrates the credential and token flows on top of the stores
// and the token service.
type Auther struct {
	repo      RepositoryManager
	tokens    TokenService
	hasher    PasswordAuthenticator
	mailer    Mailer
	logger    Logger
	useHashid bool
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Auther {
	return &Auther{
		repo:   repo,
		tokens: tokens,
		hasher: NewPasswordHasher(),
		mailer: NewLogMailer(nil),
		logger: defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMailer sets the outbound mail implementation.
func (s *Auther) WithMailer(mailer Mailer) *Auther {
	if mailer != nil {
		s.mailer = mailer
	}
	return s
}

// WithPasswordAuthenticator overrides the hashing implementation.
func (s *Auther) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithDeterministicIDs derives user ids from the registration email instead
// of generating random UUIDs.
func (s *Auther) WithDeterministicIDs() *Auther {
	s.useHashid = true
	return s
}

// RegisterParams is the typed input for Register. Validation happens at the
// boundary before the service is invoked.
type RegisterParams struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     UserRole
}

// Register creates the user and issues the first access/refresh pair.
func (s *Auther) Register(ctx context.Context, params RegisterParams) (*User, *AuthTokenPair, error) {
	hash, err := s.hasher.HashPassword(params.Password)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
	}

	user := &User{
		Name:         params.Name,
		Email:        NormalizeEmail(params.Email),
		Phone:        params.Phone,
		PasswordHash: hash,
		Role:         params.Role,
	}

	if s.useHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	user, err = s.repo.Users().Register(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.GenerateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// LoginWithEmailAndPassword verifies credentials and issues a token pair.
// Unknown emails and wrong passwords fail identically.
func (s *Auther) LoginWithEmailAndPassword(ctx context.Context, email, password string) (*User, *AuthTokenPair, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.GenerateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Logout revokes the refresh token. A second logout with the same token
// fails with ErrTokenNotFound rather than silently succeeding.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.Tokens().Consume(ctx, refreshToken, TokenTypeRefresh)
}

// RefreshAuth rotates a refresh token: the presented token is verified,
// consumed, and replaced by a fresh pair. Concurrent calls with the same
// token race on the delete; the loser fails with ErrTokenNotFound.
func (s *Auther) RefreshAuth(ctx context.Context, refreshToken string) (*AuthTokenPair, error) {
	record, err := s.tokens.VerifyToken(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.userByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Tokens().Consume(ctx, record.Token, TokenTypeRefresh); err != nil {
		return nil, err
	}

	return s.tokens.GenerateAuthTokens(ctx, user)
}

// ForgotPassword issues a reset token and mails it to the account owner.
// Fails with ErrUserNotFound when no account owns the email.
func (s *Auther) ForgotPassword(ctx context.Context, email string) error {
	token, err := s.tokens.GenerateResetPasswordToken(ctx, email)
	if err != nil {
		return err
	}

	if err := s.mailer.SendResetPasswordEmail(ctx, NormalizeEmail(email), token); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to send reset password email")
	}

	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
// Every failure surfaces as ErrPasswordResetFailed so internal causes do not
// leak to the caller; the cause is logged.
func (s *Auther) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	record, err := s.tokens.VerifyToken(ctx, resetToken, TokenTypeResetPassword)
	if err != nil {
		s.logger.Warn("password reset token rejected: %v", err)
		return ErrPasswordResetFailed
	}

	user, err := s.userByID(ctx, record.UserID)
	if err != nil {
		s.logger.Warn("password reset for missing user %s: %v", record.UserID, err)
		return ErrPasswordResetFailed
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		s.logger.Warn("password reset hash failure: %v", err)
		return ErrPasswordResetFailed
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			return err
		}
		return s.repo.Tokens().DeleteAllForUserTx(ctx, tx, user.ID, TokenTypeResetPassword)
	})
	if err != nil {
		s.logger.Error("password reset transaction failed for %s: %v", user.ID, err)
		return ErrPasswordResetFailed
	}

	return nil
}

// SendVerificationEmail issues a verify-email token for the user and mails
// it.
func (s *Auther) SendVerificationEmail(ctx context.Context, user *User) error {
	token, err := s.tokens.GenerateVerifyEmailToken(ctx, user)
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to send verification email")
	}

	return nil
}

// VerifyEmail consumes a verify-email token and flips the verified flag.
// Failures collapse to ErrEmailVerificationFailed.
func (s *Auther) VerifyEmail(ctx context.Context, verifyToken string) error {
	record, err := s.tokens.VerifyToken(ctx, verifyToken, TokenTypeVerifyEmail)
	if err != nil {
		s.logger.Warn("email verification token rejected: %v", err)
		return ErrEmailVerificationFailed
	}

	user, err := s.userByID(ctx, record.UserID)
	if err != nil {
		s.logger.Warn("email verification for missing user %s: %v", record.UserID, err)
		return ErrEmailVerificationFailed
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Users().MarkEmailVerifiedTx(ctx, tx, user.ID); err != nil {
			return err
		}
		return s.repo.Tokens().DeleteAllForUserTx(ctx, tx, user.ID, TokenTypeVerifyEmail)
	})
	if err != nil {
		s.logger.Error("email verification transaction failed for %s: %v", user.ID, err)
		return ErrEmailVerificationFailed
	}

	return nil
}

// CreateUser is the admin-facing creation path: role is caller supplied and
// no tokens are issued.
func (s *Auther) CreateUser(ctx context.Context, params RegisterParams) (*User, error) {
	hash, err := s.hasher.HashPassword(params.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
	}

	return s.repo.Users().Register(ctx, &User{
		Name:         params.Name,
		Email:        NormalizeEmail(params.Email),
		Phone:        params.Phone,
		PasswordHash: hash,
		Role:         params.Role,
	})
}

// UpdateUserParams is a partial update; nil fields are left untouched.
type UpdateUserParams struct {
	Name     *string
	Email    *string
	Phone    *string
	Password *string
}

// UpdateUser applies a partial update, rehashing the password when one is
// provided and rejecting email collisions.
func (s *Auther) UpdateUser(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*User, error) {
	user, err := s.userByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Email != nil {
		user.Email = NormalizeEmail(*params.Email)
	}
	if params.Phone != nil {
		user.Phone = *params.Phone
	}
	if params.Password != nil {
		hash, err := s.hasher.HashPassword(*params.Password)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
		}
		user.PasswordHash = hash
	}

	return s.repo.Users().UpdateUser(ctx, user)
}

// DeleteUser removes the user and every token they own in one transaction.
func (s *Auther) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Tokens().DeleteAllForUserTx(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Users().DeleteUserTx(ctx, tx, id)
	})
}

func (s *Auther) userByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.Users().GetByID(ctx, id.String())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
