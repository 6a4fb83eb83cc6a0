package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"paydeck/internal/core"
)

var (
	// ErrNotFound is returned for any operation addressing a record id
	// that does not exist for the given owner. Repeating a delete on a
	// missing id fails with this error, it is not a no-op.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when registering an email that
	// already has an account.
	ErrDuplicateEmail = errors.New("email already registered")
)

// IncomeUpdate is the small-field-set update an income accepts. Nil fields
// are left untouched. Category and type are immutable after creation.
type IncomeUpdate struct {
	Description    *string
	Amount         *decimal.Decimal
	Date           *time.Time
	ReceivedAmount *decimal.Decimal
}

// ExpenseUpdate is the small-field-set update an expense accepts. There is
// deliberately no LinkedIncomeID field: the link is set at creation and no
// update path can mutate it.
type ExpenseUpdate struct {
	Description *string
	Amount      *decimal.Decimal
	Date        *time.Time
	Funded      *bool
}

// Store is the owner-scoped transaction store. Every call is bound to one
// user id; records belonging to other owners are invisible.
type Store interface {
	CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
	CreateExpense(ctx context.Context, ex core.Expense) (core.Expense, error)
	GetIncome(ctx context.Context, userID, id string) (core.Income, error)
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	UpdateIncome(ctx context.Context, userID, id string, upd IncomeUpdate) error
	UpdateExpense(ctx context.Context, userID, id string, upd ExpenseUpdate) error
	DeleteIncome(ctx context.Context, userID, id string) error
	DeleteExpense(ctx context.Context, userID, id string) error
	ListSnapshot(ctx context.Context, userID string) (core.Snapshot, error)
	ListLinkedExpenses(ctx context.Context, userID, incomeID string) ([]core.Expense, error)
}

// SnapshotLister is the read side the feed hub depends on.
type SnapshotLister interface {
	ListSnapshot(ctx context.Context, userID string) (core.Snapshot, error)
}

// User is an account of the local identity provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists identity provider accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// Record kinds as stored in the type discriminant column. The domain layer
// never sees this flag; it only exists at the storage and export boundary.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// ExportRow is the flat shape handed to the spreadsheet mirror.
type ExportRow struct {
	ID          string
	UserID      string
	Kind        string
	Description string
	Amount      decimal.Decimal
	Category    string
	Date        time.Time
}

// PendingExport identifies a committed record not yet mirrored.
type PendingExport struct {
	ID        string
	CreatedAt time.Time
}
