package api

import (
	"fmt"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/auth/middleware/jwtware"
	"github.com/finguard/finguard-server/expenses"
	"github.com/finguard/finguard-server/internal/validate"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 256
	MaxEmailLength    = 256
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes
	MaxPasswordLength = 72
)

type UsersController struct {
	Debug       bool
	Logger      auth.Logger
	Credentials Credentials
	Tokens      auth.TokenIssuer
	Expenses    *expenses.Service
}

// Credentials is what the users endpoints need from the credential store
type Credentials interface {
	auth.IdentityProvider
	auth.AccountRegisterer
}

type UsersControllerOption func(*UsersController) *UsersController

func NewUsersController(opts ...UsersControllerOption) *UsersController {
	c := &UsersController{
		Logger: nopLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Credentials == nil {
		panic("Missing Credentials in users controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenIssuer in users controller...")
	}

	if c.Expenses == nil {
		panic("Missing expenses Service in users controller...")
	}

	return c
}

// RegisterRequest payload
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(MinUsernameLength, MaxUsernameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, MaxEmailLength), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
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
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ProfileResponse is the body of GET /users/me
type ProfileResponse struct {
	ID       string            `json:"id"`
	Username string            `json:"username"`
	Email    string            `json:"email"`
	Expenses []ExpenseResponse `json:"expenses"`
}

// Register creates the account and answers with a token for it
func (u *UsersController) Register(c *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := c.BodyParser(payload); err != nil {
		return ErrBadRequestBody
	}

	if err := validate.Check(payload, "invalid registration"); err != nil {
		return err
	}

	if u.Debug {
		fmt.Println("======= REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(map[string]string{
			"username": payload.Username,
			"email":    payload.Email,
		}))
		fmt.Println("=======================")
	}

	id, err := u.Credentials.Register(c.UserContext(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		return err
	}

	identity, err := u.Credentials.FindIdentity(c.UserContext(), id)
	if err != nil {
		return err
	}

	token, err := u.Tokens.Issue(identity)
	if err != nil {
		return err
	}

	u.Logger.Info("user registered", "user_id", id.String())

	return c.Status(fiber.StatusOK).JSON(token)
}

// Login exchanges email and password for a token
func (u *UsersController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return ErrBadRequestBody
	}

	if err := validate.Check(payload, "invalid login"); err != nil {
		return err
	}

	identity, err := u.Credentials.Verify(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	token, err := u.Tokens.Issue(identity)
	if err != nil {
		return err
	}

	return c.JSON(token)
}

// Me returns the caller's profile with the expenses they own
func (u *UsersController) Me(c *fiber.Ctx) error {
	requester, ok := jwtware.IdentityFromLocals(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	identity, err := u.Credentials.FindIdentity(c.UserContext(), requester.ID)
	if err != nil {
		return err
	}

	owned, err := u.Expenses.ListOwned(c.UserContext(), identity)
	if err != nil {
		return err
	}

	return c.JSON(ProfileResponse{
		ID:       identity.ID.String(),
		Username: identity.Username,
		Email:    identity.Email,
		Expenses: newExpenseResponses(owned),
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
