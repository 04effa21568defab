package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// Config holds the token options the services read. Implementations must be
// immutable after construction.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetResetPasswordTokenTTL() time.Duration
	GetVerifyEmailTokenTTL() time.Duration
}

// AppConfig is the process configuration, loaded once at startup and
// read-only thereafter.
type AppConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"3000"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared"`

	JWTSecret                  string   `env:"JWT_SECRET"`
	JWTIssuer                  string   `env:"JWT_ISSUER" envDefault:"go-auth"`
	JWTAudience                []string `env:"JWT_AUDIENCE" envSeparator:","`
	AccessExpirationMinutes    int      `env:"JWT_ACCESS_EXPIRATION_MINUTES" envDefault:"30"`
	RefreshExpirationDays      int      `env:"JWT_REFRESH_EXPIRATION_DAYS" envDefault:"30"`
	ResetPasswordExpirationMin int      `env:"JWT_RESET_PASSWORD_EXPIRATION_MINUTES" envDefault:"10"`
	VerifyEmailExpirationMin   int      `env:"JWT_VERIFY_EMAIL_EXPIRATION_MINUTES" envDefault:"10"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	EmailFrom    string `env:"EMAIL_FROM"`
}

var _ Config = (*AppConfig)(nil)

// LoadConfig reads the environment once and validates the result.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to parse environment configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}

	return cfg, nil
}

// Validate will run validation rules
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JWTSecret, validation.Required),
		validation.Field(&c.Port, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Environment, validation.Required, validation.In(
			"production", "development", "test",
		)),
		validation.Field(&c.AccessExpirationMinutes, validation.Min(1)),
		validation.Field(&c.RefreshExpirationDays, validation.Min(1)),
		validation.Field(&c.ResetPasswordExpirationMin, validation.Min(1)),
		validation.Field(&c.VerifyEmailExpirationMin, validation.Min(1)),
	)
}

// IsProduction reports whether the process runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *AppConfig) GetSigningKey() string {
	return c.JWTSecret
}

func (c *AppConfig) GetIssuer() string {
	return c.JWTIssuer
}

func (c *AppConfig) GetAudience() []string {
	return c.JWTAudience
}

func (c *AppConfig) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.AccessExpirationMinutes) * time.Minute
}

func (c *AppConfig) GetRefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshExpirationDays) * 24 * time.Hour
}

func (c *AppConfig) GetResetPasswordTokenTTL() time.Duration {
	return time.Duration(c.ResetPasswordExpirationMin) * time.Minute
}

func (c *AppConfig) GetVerifyEmailTokenTTL() time.Duration {
	return time.Duration(c.VerifyEmailExpirationMin) * time.Minute
}
