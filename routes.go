package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/restfulkit/go-auth/middleware/jwtware"
)

// RouterDeps carries everything route registration needs.
type RouterDeps struct {
	Repo   RepositoryManager
	Tokens TokenService
	Auther *Auther
	Logger Logger
	Debug  bool
}

// RegisterRoutes mounts the auth and user route groups under the given
// router, typically the /v1 group.
func RegisterRoutes(app fiber.Router, deps RouterDeps) {
	if deps.Logger == nil {
		deps.Logger = defLogger{}
	}

	requireAuth := jwtware.New(jwtware.Config{
		Authenticate: NewAccessAuthenticator(deps.Tokens, deps.Repo),
		ContextKey:   ContextKeyUser,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return errors.New("missing or malformed JWT", errors.CategoryAuth).
					WithTextCode(TextCodeInvalidToken)
			}
			// already structured, let the app error handler map it
			return err
		},
	})

	authController := NewAuthController(deps.Auther,
		WithAuthControllerLogger(deps.Logger),
		WithAuthControllerDebug(deps.Debug),
	)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", authController.RegisterPost)
	authGroup.Post("/login", authController.LoginPost)
	authGroup.Post("/logout", authController.LogoutPost)
	authGroup.Post("/refresh-tokens", authController.RefreshTokensPost)
	authGroup.Post("/forgot-password", authController.ForgotPasswordPost)
	authGroup.Post("/reset-password", authController.ResetPasswordPost)
	authGroup.Post("/send-verification-email", requireAuth, authController.SendVerificationEmailPost)
	authGroup.Post("/verify-email", authController.VerifyEmailPost)

	userController := NewUserController(deps.Auther, deps.Repo)

	userGroup := app.Group("/users", requireAuth)
	userGroup.Post("/", RequireRights("", PermissionManageUsers), userController.CreatePost)
	userGroup.Get("/", RequireRights("", PermissionGetUsers), userController.ListGet)
	userGroup.Get("/:userId", RequireRights("userId", PermissionGetUsers), userController.DetailGet)
	userGroup.Patch("/:userId", RequireRights("userId", PermissionManageUsers), userController.UpdatePatch)
	userGroup.Delete("/:userId", RequireRights("userId", PermissionManageUsers), userController.DeleteUser)
}
