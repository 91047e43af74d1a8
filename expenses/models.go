package expenses

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	// DateLayout is the wire format for an expense date
	DateLayout = "2006-01-02"
	// MaxDescriptionLength matches the description column
	MaxDescriptionLength = 200
)

// maxAmount keeps values inside DECIMAL(18,2)
var maxAmount = decimal.New(1, 16)

// Expense is a financial record owned by exactly one user
type Expense struct {
	bun.BaseModel `bun:"table:expenses,alias:exp"`
	ID            uuid.UUID       `bun:"id,pk,type:varchar(36)" json:"id"`
	Description   string          `bun:"description,notnull" json:"description"`
	Amount        decimal.Decimal `bun:"amount,notnull" json:"amount"`
	Date          time.Time       `bun:"date,notnull" json:"date"`
	Owner         uuid.UUID       `bun:"owner_id,notnull,type:varchar(36)" json:"owner_id"`
	CreatedBy     string          `bun:"created_by,notnull" json:"created_by"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// OwnerID returns the id of the user that created the expense
func (e *Expense) OwnerID() uuid.UUID {
	return e.Owner
}

// Input holds the caller supplied fields of an expense. Owner and timestamps
// are never taken from input.
type Input struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

// Validate will run validation rules
func (i Input) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Description, validation.Required, validation.RuneLength(1, MaxDescriptionLength)),
		validation.Field(&i.Amount, validation.By(validateAmount)),
		validation.Field(&i.Date, validation.Required),
	)
}

func (i Input) normalize() Input {
	i.Description = strings.TrimSpace(i.Description)
	i.Date = TruncateDate(i.Date)
	return i
}

func validateAmount(value any) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal number")
	}

	if !amount.IsPositive() {
		return errors.New("must be greater than zero")
	}

	if amount.Exponent() < -2 && !amount.Equal(amount.Truncate(2)) {
		return errors.New("must have at most two decimal places")
	}

	if amount.GreaterThanOrEqual(maxAmount) {
		return errors.New("is too large")
	}

	return nil
}

// TruncateDate drops the time of day, keeping the calendar date in UTC
func TruncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}

	return TruncateDate(t), nil
}
