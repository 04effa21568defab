// Package jwtware guards fiber routes with bearer-token authentication. It
// stays decoupled from the auth package: the token is resolved by an
// injected Authenticate function and the result is stored in the request
// locals for downstream guards.
package jwtware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrJWTMissingOrMalformed is returned when no usable token is present in
// the configured lookup location.
var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

// Authenticate resolves a bearer token into a principal. The returned value
// is stored under Config.ContextKey.
type Authenticate func(c *fiber.Ctx, token string) (any, error)

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(*fiber.Ctx) bool

	// Authenticate is required.
	Authenticate Authenticate

	// ErrorHandler receives extraction and authentication failures.
	ErrorHandler fiber.ErrorHandler

	// ContextKey is the locals key the principal is stored under.
	// Defaults to "user".
	ContextKey string

	// AuthScheme is the expected Authorization scheme. Defaults to "Bearer".
	AuthScheme string
}

func (cfg *Config) setDefaults() {
	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return fiber.NewError(fiber.StatusUnauthorized, "Please authenticate")
		}
	}
}

// New returns the middleware handler.
func New(cfg Config) fiber.Handler {
	if cfg.Authenticate == nil {
		panic("jwtware: Authenticate is required")
	}

	cfg.setDefaults()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		token, err := tokenFromHeader(c, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		principal, err := cfg.Authenticate(c, token)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, principal)
		return c.Next()
	}
}

func tokenFromHeader(c *fiber.Ctx, scheme string) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", ErrJWTMissingOrMalformed
	}

	prefix := scheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrJWTMissingOrMalformed
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrJWTMissingOrMalformed
	}

	return token, nil
}

// Principal retrieves the stored principal, or nil when the route was not
// guarded.
func Principal(c *fiber.Ctx, contextKey string) any {
	if contextKey == "" {
		contextKey = "user"
	}
	return c.Locals(contextKey)
}
