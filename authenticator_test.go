package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/restfulkit/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMailer is a testify mock for the outbound mail seam.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendResetPasswordEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

func TestRegister(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	t.Run("successful registration", func(t *testing.T) {
		user, pair, err := stack.auther.Register(ctx, auth.RegisterParams{
			Name:     "New User",
			Email:    "  New.User@Example.COM ",
			Password: "password1234",
		})
		require.NoError(t, err)
		require.NotNil(t, user)
		require.NotNil(t, pair)

		assert.Equal(t, "new.user@example.com", user.Email)
		assert.Equal(t, auth.RoleUser, user.Role)
		assert.False(t, user.EmailVerified)
		assert.NotEqual(t, "password1234", user.PasswordHash)

		record, err := stack.tokens.VerifyToken(ctx, pair.Refresh.Token, auth.TokenTypeRefresh)
		require.NoError(t, err)
		assert.Equal(t, user.ID, record.UserID)
	})

	t.Run("duplicate email is rejected regardless of case", func(t *testing.T) {
		_, _, err := stack.auther.Register(ctx, auth.RegisterParams{
			Name:     "Impostor",
			Email:    "NEW.USER@example.com",
			Password: "password1234",
		})
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, _, err := stack.auther.Register(ctx, auth.RegisterParams{
			Name:  "No Password",
			Email: "nopass@example.com",
		})
		assert.Error(t, err)
	})
}

func TestLoginWithEmailAndPassword(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	_, _, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Login User",
		Email:    "login@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	t.Run("successful login", func(t *testing.T) {
		user, pair, err := stack.auther.LoginWithEmailAndPassword(ctx, "login@example.com", "password1234")
		require.NoError(t, err)
		assert.Equal(t, "login@example.com", user.Email)
		assert.NotEmpty(t, pair.Access.Token)
		assert.NotEmpty(t, pair.Refresh.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := stack.auther.LoginWithEmailAndPassword(ctx, "login@example.com", "wrongpass1234")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email fails the same way", func(t *testing.T) {
		_, _, err := stack.auther.LoginWithEmailAndPassword(ctx, "ghost@example.com", "password1234")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestLogout(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	_, pair, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Logout User",
		Email:    "logout@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	require.NoError(t, stack.auther.Logout(ctx, pair.Refresh.Token))

	t.Run("second logout with the same token fails", func(t *testing.T) {
		err := stack.auther.Logout(ctx, pair.Refresh.Token)
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})

	t.Run("refresh after logout fails", func(t *testing.T) {
		_, err := stack.auther.RefreshAuth(ctx, pair.Refresh.Token)
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})
}

func TestRefreshAuth(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	user, pair, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Refresh User",
		Email:    "refresh@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	next, err := stack.auther.RefreshAuth(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh.Token, next.Refresh.Token)

	t.Run("new pair belongs to the same user", func(t *testing.T) {
		record, err := stack.tokens.VerifyToken(ctx, next.Refresh.Token, auth.TokenTypeRefresh)
		require.NoError(t, err)
		assert.Equal(t, user.ID, record.UserID)
	})

	t.Run("consumed refresh token cannot be reused", func(t *testing.T) {
		_, err := stack.auther.RefreshAuth(ctx, pair.Refresh.Token)
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		_, err := stack.auther.RefreshAuth(ctx, "not-a-token")
		assert.Error(t, err)
	})
}

func TestRefreshAuthConcurrentReuse(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	_, pair, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Race User",
		Email:    "race@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	const attempts = 4

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = stack.auther.RefreshAuth(ctx, pair.Refresh.Token)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, auth.ErrTokenNotFound)
		}
	}

	assert.Equal(t, 1, winners, "exactly one concurrent refresh may succeed")
}

func TestForgotAndResetPassword(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	_, _, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Forgetful User",
		Email:    "forgetful@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	t.Run("unknown email fails", func(t *testing.T) {
		err := stack.auther.ForgotPassword(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	require.NoError(t, stack.auther.ForgotPassword(ctx, "forgetful@example.com"))
	resetToken := stack.mailer.lastResetToken()
	require.NotEmpty(t, resetToken)

	require.NoError(t, stack.auther.ResetPassword(ctx, resetToken, "newpassword99"))

	t.Run("new password works and the old one does not", func(t *testing.T) {
		_, _, err := stack.auther.LoginWithEmailAndPassword(ctx, "forgetful@example.com", "newpassword99")
		assert.NoError(t, err)

		_, _, err = stack.auther.LoginWithEmailAndPassword(ctx, "forgetful@example.com", "password1234")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("reset token is single use", func(t *testing.T) {
		err := stack.auther.ResetPassword(ctx, resetToken, "anotherpass55")
		assert.ErrorIs(t, err, auth.ErrPasswordResetFailed)
	})

	t.Run("garbage reset token", func(t *testing.T) {
		err := stack.auther.ResetPassword(ctx, "garbage", "anotherpass55")
		assert.ErrorIs(t, err, auth.ErrPasswordResetFailed)
	})
}

func TestForgotPasswordUsesMailer(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	_, _, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Mail User",
		Email:    "mail@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	mailer := new(MockMailer)
	mailer.On("SendResetPasswordEmail", mock.Anything, "mail@example.com", mock.AnythingOfType("string")).
		Return(nil).Once()

	stack.auther.WithMailer(mailer)

	require.NoError(t, stack.auther.ForgotPassword(ctx, "Mail@Example.com"))
	mailer.AssertExpectations(t)
}

func TestVerifyEmailFlow(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	user, _, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Unverified User",
		Email:    "unverified@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)
	require.False(t, user.EmailVerified)

	require.NoError(t, stack.auther.SendVerificationEmail(ctx, user))
	verifyToken := stack.mailer.lastVerifyToken()
	require.NotEmpty(t, verifyToken)

	require.NoError(t, stack.auther.VerifyEmail(ctx, verifyToken))

	t.Run("flag is flipped", func(t *testing.T) {
		fresh, err := stack.repo.Users().GetByEmail(ctx, "unverified@example.com")
		require.NoError(t, err)
		assert.True(t, fresh.EmailVerified)
	})

	t.Run("verification token is single use", func(t *testing.T) {
		err := stack.auther.VerifyEmail(ctx, verifyToken)
		assert.ErrorIs(t, err, auth.ErrEmailVerificationFailed)
	})

	t.Run("garbage verification token", func(t *testing.T) {
		err := stack.auther.VerifyEmail(ctx, "garbage")
		assert.ErrorIs(t, err, auth.ErrEmailVerificationFailed)
	})
}

func TestCreateUser(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	user, err := stack.auther.CreateUser(ctx, auth.RegisterParams{
		Name:     "Admin Made",
		Email:    "made@example.com",
		Password: "password1234",
		Role:     auth.RoleAdmin,
	})
	require.NoError(t, err)

	assert.Equal(t, auth.RoleAdmin, user.Role)

	// no tokens are issued through this path
	count, err := stack.db.NewSelect().Model((*auth.Token)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateUser(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	user, _, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Original Name",
		Email:    "original@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	other := seedUser(t, stack.repo, "Other User", "other@example.com", auth.RoleUser)

	t.Run("partial update", func(t *testing.T) {
		name := "Renamed"
		updated, err := stack.auther.UpdateUser(ctx, user.ID, auth.UpdateUserParams{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, "original@example.com", updated.Email)
	})

	t.Run("email collision", func(t *testing.T) {
		email := other.Email
		_, err := stack.auther.UpdateUser(ctx, user.ID, auth.UpdateUserParams{Email: &email})
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("password change allows login with the new password", func(t *testing.T) {
		password := "rotated5678"
		_, err := stack.auther.UpdateUser(ctx, user.ID, auth.UpdateUserParams{Password: &password})
		require.NoError(t, err)

		_, _, err = stack.auther.LoginWithEmailAndPassword(ctx, "original@example.com", "rotated5678")
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		name := "Nobody"
		_, err := stack.auther.UpdateUser(ctx, newRandomID(t), auth.UpdateUserParams{Name: &name})
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestDeleteUserCascadesTokens(t *testing.T) {
	stack := newTestStack(t, newTestConfig())
	ctx := context.Background()

	user, pair, err := stack.auther.Register(ctx, auth.RegisterParams{
		Name:     "Doomed User",
		Email:    "doomed@example.com",
		Password: "password1234",
	})
	require.NoError(t, err)

	require.NoError(t, stack.auther.DeleteUser(ctx, user.ID))

	t.Run("user is gone", func(t *testing.T) {
		_, err := stack.repo.Users().GetByEmail(ctx, "doomed@example.com")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("their refresh token is gone too", func(t *testing.T) {
		_, err := stack.tokens.VerifyToken(ctx, pair.Refresh.Token, auth.TokenTypeRefresh)
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})

	t.Run("deleting again fails", func(t *testing.T) {
		err := stack.auther.DeleteUser(ctx, user.ID)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}
