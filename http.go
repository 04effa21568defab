package auth

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/restfulkit/go-auth/middleware/jwtware"
)

// ContextKeyUser is the locals key the authenticated *User is stored under.
const ContextKeyUser = "user"

// ErrorEnvelope is the uniform error body every handler produces.
type ErrorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HTTPStatusFromError maps the error taxonomy to a status code. The mapping
// lives here, at the boundary, so service errors stay transport agnostic.
func HTTPStatusFromError(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorHandler builds the fiber error handler that normalizes every
// failure into ErrorEnvelope. In production mode internal messages are
// replaced with a generic one.
func NewErrorHandler(logger Logger, production bool) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		message := err.Error()

		var fiberErr *fiber.Error
		var richErr *errors.Error
		var validationErrs validation.Errors

		switch {
		case errors.As(err, &richErr):
			status = HTTPStatusFromError(richErr)
			message = richErr.Message
			logger.Debug("request failed status=%d code=%s details=%s",
				status, richErr.TextCode, print.MaybePrettyJSON(richErr.Metadata))
		case errors.As(err, &validationErrs):
			status = http.StatusBadRequest
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		}

		if status >= http.StatusInternalServerError {
			logger.Error("internal error handling request path=%s: %v", c.Path(), err)
			if production {
				message = http.StatusText(http.StatusInternalServerError)
			}
		}

		return c.Status(status).JSON(ErrorEnvelope{Code: status, Message: message})
	}
}

// NewAccessAuthenticator returns the jwtware Authenticate function: it
// verifies the bearer token as an access token and resolves the owning user,
// so role checks always see current data.
func NewAccessAuthenticator(tokens TokenService, repo RepositoryManager) jwtware.Authenticate {
	return func(c *fiber.Ctx, token string) (any, error) {
		record, err := tokens.VerifyToken(c.UserContext(), token, TokenTypeAccess)
		if err != nil {
			return nil, err
		}

		user, err := repo.Users().GetByID(c.UserContext(), record.UserID.String())
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}

		return user, nil
	}
}

// UserFromRequest returns the authenticated user placed by the bearer
// middleware, or nil on unguarded routes.
func UserFromRequest(c *fiber.Ctx) *User {
	user, _ := jwtware.Principal(c, ContextKeyUser).(*User)
	return user
}

// RequireRights guards a route with the rights table. When selfParam names a
// route parameter, a caller whose id matches that parameter is allowed
// through without holding the rights (users may act on their own record).
func RequireRights(selfParam string, rights ...Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := UserFromRequest(c)
		if user == nil {
			return errors.New("authentication required", errors.CategoryAuth)
		}

		if selfParam != "" && c.Params(selfParam) == user.ID.String() {
			return c.Next()
		}

		for _, right := range rights {
			if !RoleHasRight(user.Role, right) {
				return ErrInsufficientRights
			}
		}

		return c.Next()
	}
}

// ctxKey is used for claims stored on a plain context, outside fiber.
type ctxKey string

const claimsContextKey ctxKey = "auth:claims"

// WithClaimsContext stores verified claims on the context.
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext retrieves claims stored with WithClaimsContext.
func ClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(AuthClaims)
	return claims, ok
}
