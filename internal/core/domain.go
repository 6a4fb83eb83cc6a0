package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Needs   BudgetCategory = "needs"
	Wants   BudgetCategory = "wants"
	Savings BudgetCategory = "savings"
)

// Category names the aggregation rules key on.
const (
	CategorySalary  = "Salary"
	CategorySavings = "Savings"
)

type (
	// BudgetCategory is the 50/30/20 classification bucket of an expense.
	BudgetCategory string

	// Income is an expected or received paycheck. ReceivedAmount of zero
	// means not yet received; any positive value means received, and a
	// value different from Amount marks a partial or mismatched receipt.
	Income struct {
		ID             string
		UserID         string
		Description    string
		Amount         decimal.Decimal
		Category       string
		Date           time.Time
		ReceivedAmount decimal.Decimal
		CreatedAt      time.Time
	}

	// Expense is a planned or paid cost. LinkedIncomeID optionally names
	// the income the expense is allocated against; it is set at creation
	// and has no update path. The link only affects display grouping,
	// never the aggregate figures.
	Expense struct {
		ID             string
		UserID         string
		Description    string
		Amount         decimal.Decimal
		Category       string
		Date           time.Time
		BudgetCategory BudgetCategory
		Funded         bool
		LinkedIncomeID string
		CreatedAt      time.Time
	}

	// Snapshot is the full owner-scoped record set as delivered by the
	// feed. Consumers treat it as immutable-by-replacement: every update
	// is a whole new snapshot, never an in-place patch.
	Snapshot struct {
		Incomes  []Income
		Expenses []Expense
	}
)

// IncomeCategories and ExpenseCategories are the fixed label sets, distinct
// per record kind.
var (
	IncomeCategories  = []string{"Salary", "Freelance", "Investments", "Other"}
	ExpenseCategories = []string{"Rent", "Utilities", "Groceries", "Transportation", "Entertainment", "Shopping", "Healthcare", "Savings", "Other"}
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrEmptyDescription      = errors.New("empty description")
	ErrInvalidCategory       = errors.New("invalid category")
	ErrInvalidBudgetCategory = errors.New("invalid budget category")
	ErrZeroDate              = errors.New("date cannot be zero")
)

func (b BudgetCategory) Validate() error {
	switch b {
	case Needs, Wants, Savings:
		return nil
	default:
		return ErrInvalidBudgetCategory
	}
}

// Received reports whether any money has arrived for this income.
func (i Income) Received() bool {
	return i.ReceivedAmount.IsPositive()
}

// FullyReceived reports whether the received amount matches the expected one.
func (i Income) FullyReceived() bool {
	return i.Received() && i.ReceivedAmount.Equal(i.Amount)
}

func (i Income) Validate() error {
	if err := validateCommon(i.Description, i.Amount, i.Date); err != nil {
		return err
	}
	if !containsCategory(IncomeCategories, i.Category) {
		return ErrInvalidCategory
	}
	if i.ReceivedAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Linked reports whether the expense is allocated against an income.
func (e Expense) Linked() bool {
	return e.LinkedIncomeID != ""
}

func (e Expense) Validate() error {
	if err := validateCommon(e.Description, e.Amount, e.Date); err != nil {
		return err
	}
	if !containsCategory(ExpenseCategories, e.Category) {
		return ErrInvalidCategory
	}
	return e.BudgetCategory.Validate()
}

// Empty reports whether the snapshot holds no records at all.
func (s Snapshot) Empty() bool {
	return len(s.Incomes) == 0 && len(s.Expenses) == 0
}

func validateCommon(description string, amount decimal.Decimal, date time.Time) error {
	if len(strings.TrimSpace(description)) == 0 {
		return ErrEmptyDescription
	}
	if len(description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func containsCategory(set []string, name string) bool {
	for _, c := range set {
		if c == name {
			return true
		}
	}
	return false
}
