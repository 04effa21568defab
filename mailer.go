package auth

import "context"

// Mailer delivers the outbound notifications the auth flows produce. The
// token is embedded in a link the recipient follows back to the API.
type Mailer interface {
	SendResetPasswordEmail(ctx context.Context, to, token string) error
	SendVerificationEmail(ctx context.Context, to, token string) error
}

type logMailer struct {
	logger Logger
}

// NewLogMailer returns a Mailer that logs outbound messages instead of
// sending them. Inject an SMTP backed implementation in deployments that
// deliver real mail.
func NewLogMailer(logger Logger) Mailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &logMailer{logger: logger}
}

func (m *logMailer) SendResetPasswordEmail(ctx context.Context, to, token string) error {
	m.logger.Info("sending password reset email to %s link=/v1/auth/reset-password?token=%s", to, token)
	return nil
}

func (m *logMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	m.logger.Info("sending verification email to %s link=/v1/auth/verify-email?token=%s", to, token)
	return nil
}
