package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/auth/middleware/jwtware"
	"github.com/finguard/finguard-server/expenses"
	"github.com/finguard/finguard-server/internal/validate"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpensesController struct {
	Logger   auth.Logger
	Expenses *expenses.Service
	// BasePath prefixes the Location header of created expenses
	BasePath string
}

type ExpensesControllerOption func(*ExpensesController) *ExpensesController

func NewExpensesController(opts ...ExpensesControllerOption) *ExpensesController {
	c := &ExpensesController{
		Logger: nopLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Expenses == nil {
		panic("Missing expenses Service in expenses controller...")
	}

	return c
}

// ExpenseRequest payload for create and update
type ExpenseRequest struct {
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        string           `json:"date"`
}

// Validate will run validation rules
func (r ExpenseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.Required, validation.RuneLength(1, expenses.MaxDescriptionLength)),
		validation.Field(&r.Amount, validation.NotNil),
		validation.Field(&r.Date, validation.Required, validation.By(validateDate)),
	)
}

// Input converts a validated payload
func (r ExpenseRequest) Input() expenses.Input {
	input := expenses.Input{Description: r.Description}
	if r.Amount != nil {
		input.Amount = *r.Amount
	}
	input.Date, _ = expenses.ParseDate(r.Date)
	return input
}

func validateDate(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := expenses.ParseDate(s); err != nil {
		return errors.New("must be a date formatted as YYYY-MM-DD")
	}
	return nil
}

// ExpenseResponse is the wire form of an expense
type ExpenseResponse struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Date        string      `json:"date"`
	OwnerID     string      `json:"owner_id"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
}

func newExpenseResponse(record *expenses.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          record.ID.String(),
		Description: record.Description,
		Amount:      json.Number(record.Amount.StringFixed(2)),
		Date:        record.Date.Format(expenses.DateLayout),
		OwnerID:     record.Owner.String(),
		CreatedBy:   record.CreatedBy,
		CreatedAt:   record.CreatedAt.UTC(),
	}
}

func newExpenseResponses(records []*expenses.Expense) []ExpenseResponse {
	out := make([]ExpenseResponse, 0, len(records))
	for _, record := range records {
		out = append(out, newExpenseResponse(record))
	}
	return out
}

func (e *ExpensesController) List(c *fiber.Ctx) error {
	requester, err := requesterOf(c)
	if err != nil {
		return err
	}

	records, err := e.Expenses.List(c.UserContext(), requester)
	if err != nil {
		return err
	}

	return c.JSON(newExpenseResponses(records))
}

func (e *ExpensesController) Create(c *fiber.Ctx) error {
	requester, err := requesterOf(c)
	if err != nil {
		return err
	}

	payload, err := parseExpenseRequest(c)
	if err != nil {
		return err
	}

	record, err := e.Expenses.Create(c.UserContext(), requester, payload.Input())
	if err != nil {
		return err
	}

	e.Logger.Debug("expense created", "expense_id", record.ID.String(), "user_id", requester.ID.String())

	c.Location(e.BasePath + "/expenses/" + record.ID.String())
	return c.Status(fiber.StatusCreated).JSON(newExpenseResponse(record))
}

func (e *ExpensesController) Get(c *fiber.Ctx) error {
	requester, err := requesterOf(c)
	if err != nil {
		return err
	}

	id, err := expenseID(c)
	if err != nil {
		return err
	}

	record, err := e.Expenses.Get(c.UserContext(), requester, id)
	if err != nil {
		return err
	}

	return c.JSON(newExpenseResponse(record))
}

func (e *ExpensesController) Update(c *fiber.Ctx) error {
	requester, err := requesterOf(c)
	if err != nil {
		return err
	}

	id, err := expenseID(c)
	if err != nil {
		return err
	}

	payload, err := parseExpenseRequest(c)
	if err != nil {
		return err
	}

	record, err := e.Expenses.Update(c.UserContext(), requester, id, payload.Input())
	if err != nil {
		return err
	}

	return c.JSON(newExpenseResponse(record))
}

func (e *ExpensesController) Delete(c *fiber.Ctx) error {
	requester, err := requesterOf(c)
	if err != nil {
		return err
	}

	id, err := expenseID(c)
	if err != nil {
		return err
	}

	if err := e.Expenses.Delete(c.UserContext(), requester, id); err != nil {
		return err
	}

	e.Logger.Debug("expense deleted", "expense_id", id.String(), "user_id", requester.ID.String())

	return c.SendStatus(fiber.StatusNoContent)
}

func parseExpenseRequest(c *fiber.Ctx) (*ExpenseRequest, error) {
	payload := new(ExpenseRequest)
	if err := c.BodyParser(payload); err != nil {
		return nil, ErrBadRequestBody
	}
	if err := validate.Check(payload, "invalid expense"); err != nil {
		return nil, err
	}
	return payload, nil
}

func requesterOf(c *fiber.Ctx) (auth.Identity, error) {
	identity, ok := jwtware.IdentityFromLocals(c)
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return identity, nil
}

// expenseID reads the :id param. A malformed id cannot name an existing
// expense so it is reported as not found.
func expenseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, auth.ErrNotFound
	}
	return id, nil
}
