package auth

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

var (
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
	hasDigit  = regexp.MustCompile(`\d`)
)

// passwordRule mirrors the registration policy: at least 8 characters with
// at least one letter and one digit.
var passwordRule = validation.By(func(value any) error {
	s, _ := value.(string)
	if len(s) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if !hasLetter.MatchString(s) || !hasDigit.MatchString(s) {
		return fmt.Errorf("password must contain at least one letter and one number")
	}
	return nil
})

// phoneRule accepts E.164-ish input parseable without a region hint.
var phoneRule = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, "")
	if err != nil {
		return fmt.Errorf("invalid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return fmt.Errorf("invalid phone number")
	}
	return nil
})

// RegisterRequest payload
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, phoneRule),
		validation.Field(&r.Password, validation.Required, passwordRule),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshTokenRequest payload, shared by logout and refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate will run validation rules
func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest payload; the token travels in the query string.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, passwordRule),
	)
}

// CreateUserRequest is the admin creation payload.
type CreateUserRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

// Validate will run validation rules
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, phoneRule),
		validation.Field(&r.Password, validation.Required, passwordRule),
		validation.Field(&r.Role, validation.Required, validation.By(func(value any) error {
			role, _ := value.(UserRole)
			if !IsValidRole(role) {
				return fmt.Errorf("role must be one of: user, admin")
			}
			return nil
		})),
	)
}

// UpdateUserRequest is a partial update payload.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

// Validate will run validation rules
func (r UpdateUserRequest) Validate() error {
	if r.Name == nil && r.Email == nil && r.Phone == nil && r.Password == nil {
		return fmt.Errorf("at least one field must be provided")
	}

	if r.Email != nil {
		if err := validation.Validate(*r.Email, validation.Required, is.Email); err != nil {
			return err
		}
	}
	if r.Phone != nil {
		if err := phoneRule.Validate(*r.Phone); err != nil {
			return err
		}
	}
	if r.Password != nil {
		if err := passwordRule.Validate(*r.Password); err != nil {
			return err
		}
	}

	return nil
}

// AuthController serves the /auth routes.
type AuthController struct {
	Debug  bool
	Logger Logger
	Auther *Auther
}

// AuthControllerOption customizes the controller.
type AuthControllerOption func(*AuthController) *AuthController

// NewAuthController builds the controller; the Auther is mandatory.
func NewAuthController(auther *Auther, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Auther: auther,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	return c
}

// WithAuthControllerLogger overrides the controller logger.
func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithAuthControllerDebug enables request payload dumps.
func WithAuthControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func (a *AuthController) RegisterPost(ctx *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	if a.Debug {
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(payload))
	}

	user, tokens, err := a.Auther.Register(ctx.UserContext(), RegisterParams{
		Name:     payload.Name,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		Role:     RoleUser,
	})
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":   user,
		"tokens": tokens,
	})
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	user, tokens, err := a.Auther.LoginWithEmailAndPassword(ctx.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"user":   user,
		"tokens": tokens,
	})
}

func (a *AuthController) LogoutPost(ctx *fiber.Ctx) error {
	payload := new(RefreshTokenRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	if err := a.Auther.Logout(ctx.UserContext(), payload.RefreshToken); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) RefreshTokensPost(ctx *fiber.Ctx) error {
	payload := new(RefreshTokenRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	tokens, err := a.Auther.RefreshAuth(ctx.UserContext(), payload.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.JSON(tokens)
}

func (a *AuthController) ForgotPasswordPost(ctx *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	if err := a.Auther.ForgotPassword(ctx.UserContext(), payload.Email); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) ResetPasswordPost(ctx *fiber.Ctx) error {
	token := ctx.Query("token")
	if token == "" {
		return errors.New("token query parameter is required", errors.CategoryBadInput)
	}

	payload := new(ResetPasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	if err := a.Auther.ResetPassword(ctx.UserContext(), token, payload.Password); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) SendVerificationEmailPost(ctx *fiber.Ctx) error {
	user := UserFromRequest(ctx)
	if user == nil {
		return errors.New("authentication required", errors.CategoryAuth)
	}

	if err := a.Auther.SendVerificationEmail(ctx.UserContext(), user); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) VerifyEmailPost(ctx *fiber.Ctx) error {
	token := ctx.Query("token")
	if token == "" {
		return errors.New("token query parameter is required", errors.CategoryBadInput)
	}

	if err := a.Auther.VerifyEmail(ctx.UserContext(), token); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// UserController serves the /users CRUD routes.
type UserController struct {
	Logger Logger
	Auther *Auther
	Repo   RepositoryManager
}

// NewUserController builds the controller.
func NewUserController(auther *Auther, repo RepositoryManager) *UserController {
	if auther == nil || repo == nil {
		panic("Missing Auther or RepositoryManager in user controller...")
	}

	return &UserController{
		Logger: defLogger{},
		Auther: auther,
		Repo:   repo,
	}
}

func (u *UserController) CreatePost(ctx *fiber.Ctx) error {
	payload := new(CreateUserRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	user, err := u.Auther.CreateUser(ctx.UserContext(), RegisterParams{
		Name:     payload.Name,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(user)
}

func (u *UserController) ListGet(ctx *fiber.Ctx) error {
	page, err := u.Repo.Users().List(ctx.UserContext(), ListUsersParams{
		Name:   ctx.Query("name"),
		Role:   ctx.Query("role"),
		SortBy: ctx.Query("sortBy"),
		Page:   ctx.QueryInt("page", 1),
		Limit:  ctx.QueryInt("limit", defaultPageSize),
	})
	if err != nil {
		return err
	}

	return ctx.JSON(page)
}

func (u *UserController) DetailGet(ctx *fiber.Ctx) error {
	id, err := parseUserID(ctx)
	if err != nil {
		return err
	}

	user, err := u.Repo.Users().GetByID(ctx.UserContext(), id.String())
	if err != nil {
		if errors.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	return ctx.JSON(user)
}

func (u *UserController) UpdatePatch(ctx *fiber.Ctx) error {
	id, err := parseUserID(ctx)
	if err != nil {
		return err
	}

	payload := new(UpdateUserRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid update payload")
	}

	user, err := u.Auther.UpdateUser(ctx.UserContext(), id, UpdateUserParams{
		Name:     payload.Name,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(user)
}

func (u *UserController) DeleteUser(ctx *fiber.Ctx) error {
	id, err := parseUserID(ctx)
	if err != nil {
		return err
	}

	if err := u.Auther.DeleteUser(ctx.UserContext(), id); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func parseUserID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("userId"))
	if err != nil {
		return uuid.Nil, errors.New("userId must be a valid UUID", errors.CategoryBadInput)
	}
	return id, nil
}
