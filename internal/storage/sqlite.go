package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paydeck/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable record store. It owns id assignment and the
// server-side creation timestamp.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure interface conformance
var (
	_ Store     = (*SQLiteStore)(nil)
	_ UserStore = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const insertTransaction = `
INSERT INTO transactions
    (id, user_id, record_type, description, amount, category, tx_date,
     received_amount, budget_category, funded, linked_income_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	in.ID = uuid.NewString()
	in.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, insertTransaction,
		in.ID, in.UserID, KindIncome, in.Description, in.Amount.String(),
		in.Category, formatTime(in.Date), in.ReceivedAmount.String(),
		"", 0, "", formatTime(in.CreatedAt))
	if err != nil {
		return core.Income{}, fmt.Errorf("insert income: %w", err)
	}

	slog.InfoContext(ctx, "Income saved",
		"id", in.ID, "user_id", in.UserID, "amount", in.Amount.String(), "category", in.Category)
	return in, nil
}

func (s *SQLiteStore) CreateExpense(ctx context.Context, ex core.Expense) (core.Expense, error) {
	ex.ID = uuid.NewString()
	ex.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, insertTransaction,
		ex.ID, ex.UserID, KindExpense, ex.Description, ex.Amount.String(),
		ex.Category, formatTime(ex.Date), "0",
		string(ex.BudgetCategory), boolToInt(ex.Funded), ex.LinkedIncomeID,
		formatTime(ex.CreatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", ex.ID, "user_id", ex.UserID, "amount", ex.Amount.String(),
		"category", ex.Category, "budget_category", ex.BudgetCategory,
		"linked_income_id", ex.LinkedIncomeID)
	return ex, nil
}

const selectTransaction = `
SELECT id, user_id, record_type, description, amount, category, tx_date,
       received_amount, budget_category, funded, linked_income_id, created_at
FROM transactions`

func (s *SQLiteStore) GetIncome(ctx context.Context, userID, id string) (core.Income, error) {
	row := s.db.QueryRowContext(ctx,
		selectTransaction+` WHERE id = ? AND user_id = ? AND record_type = ?`,
		id, userID, KindIncome)
	rec, err := scanRecord(row)
	if err != nil {
		return core.Income{}, err
	}
	return rec.income(), nil
}

func (s *SQLiteStore) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		selectTransaction+` WHERE id = ? AND user_id = ? AND record_type = ?`,
		id, userID, KindExpense)
	rec, err := scanRecord(row)
	if err != nil {
		return core.Expense{}, err
	}
	return rec.expense(), nil
}

func (s *SQLiteStore) UpdateIncome(ctx context.Context, userID, id string, upd IncomeUpdate) error {
	set, args := buildUpdate(upd.Description, upd.Amount, upd.Date)
	if upd.ReceivedAmount != nil {
		set = append(set, "received_amount = ?")
		args = append(args, upd.ReceivedAmount.String())
	}
	return s.applyUpdate(ctx, userID, id, KindIncome, set, args)
}

func (s *SQLiteStore) UpdateExpense(ctx context.Context, userID, id string, upd ExpenseUpdate) error {
	set, args := buildUpdate(upd.Description, upd.Amount, upd.Date)
	if upd.Funded != nil {
		set = append(set, "funded = ?")
		args = append(args, boolToInt(*upd.Funded))
	}
	return s.applyUpdate(ctx, userID, id, KindExpense, set, args)
}

func (s *SQLiteStore) applyUpdate(ctx context.Context, userID, id, kind string, set []string, args []any) error {
	if len(set) == 0 {
		// Nothing to change; still report a missing id as not found.
		_, err := s.GetIncome(ctx, userID, id)
		if kind == KindExpense {
			_, err = s.GetExpense(ctx, userID, id)
		}
		return err
	}

	args = append(args, id, userID, kind)
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(set, ", ")+
			` WHERE id = ? AND user_id = ? AND record_type = ?`, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) DeleteIncome(ctx context.Context, userID, id string) error {
	return s.delete(ctx, userID, id, KindIncome)
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, userID, id string) error {
	return s.delete(ctx, userID, id, KindExpense)
}

func (s *SQLiteStore) delete(ctx context.Context, userID, id, kind string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ? AND record_type = ?`,
		id, userID, kind)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return checkAffected(res)
}

// ListSnapshot returns the full record set for one owner, newest first
// within each kind.
func (s *SQLiteStore) ListSnapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE user_id = ? ORDER BY tx_date DESC, created_at DESC`,
		userID)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("list snapshot: %w", err)
	}
	defer rows.Close()

	var snap core.Snapshot
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return core.Snapshot{}, err
		}
		switch rec.kind {
		case KindIncome:
			snap.Incomes = append(snap.Incomes, rec.income())
		case KindExpense:
			snap.Expenses = append(snap.Expenses, rec.expense())
		}
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("list snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) ListLinkedExpenses(ctx context.Context, userID, incomeID string) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE user_id = ? AND record_type = ? AND linked_income_id = ?
		 ORDER BY tx_date DESC, created_at DESC`,
		userID, KindExpense, incomeID)
	if err != nil {
		return nil, fmt.Errorf("list linked expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.expense())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list linked expenses: %w", err)
	}
	return out, nil
}

// GetPendingExports returns committed records not yet mirrored to the
// spreadsheet, oldest first. The exported column is the lost-message
// backstop for the AMQP pipeline.
func (s *SQLiteStore) GetPendingExports(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at FROM transactions
		 WHERE exported = 0 AND export_error = 0
		 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	defer rows.Close()

	var out []PendingExport
	for rows.Next() {
		var p PendingExport
		var createdAt string
		if err := rows.Scan(&p.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetExportRow loads one record in the flat shape the mirror writes,
// regardless of owner.
func (s *SQLiteStore) GetExportRow(ctx context.Context, id string) (ExportRow, error) {
	row := s.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return ExportRow{}, err
	}
	return ExportRow{
		ID:          rec.id,
		UserID:      rec.userID,
		Kind:        rec.kind,
		Description: rec.description,
		Amount:      rec.amount,
		Category:    rec.category,
		Date:        rec.date,
	}, nil
}

func (s *SQLiteStore) MarkExported(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET exported = 1, export_error = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) MarkExportError(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET export_error = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// record is the raw transaction row before it is narrowed to a variant.
type record struct {
	id             string
	userID         string
	kind           string
	description    string
	amount         decimal.Decimal
	category       string
	date           time.Time
	receivedAmount decimal.Decimal
	budgetCategory string
	funded         bool
	linkedIncomeID string
	createdAt      time.Time
}

func (r record) income() core.Income {
	return core.Income{
		ID:             r.id,
		UserID:         r.userID,
		Description:    r.description,
		Amount:         r.amount,
		Category:       r.category,
		Date:           r.date,
		ReceivedAmount: r.receivedAmount,
		CreatedAt:      r.createdAt,
	}
}

func (r record) expense() core.Expense {
	return core.Expense{
		ID:             r.id,
		UserID:         r.userID,
		Description:    r.description,
		Amount:         r.amount,
		Category:       r.category,
		Date:           r.date,
		BudgetCategory: core.BudgetCategory(r.budgetCategory),
		Funded:         r.funded,
		LinkedIncomeID: r.linkedIncomeID,
		CreatedAt:      r.createdAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (record, error) {
	var rec record
	var amount, received, txDate, createdAt string
	var funded int

	err := row.Scan(&rec.id, &rec.userID, &rec.kind, &rec.description,
		&amount, &rec.category, &txDate, &received, &rec.budgetCategory,
		&funded, &rec.linkedIncomeID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return record{}, ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("scan transaction: %w", err)
	}

	rec.amount, err = decimal.NewFromString(amount)
	if err != nil {
		return record{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	rec.receivedAmount, err = decimal.NewFromString(received)
	if err != nil {
		return record{}, fmt.Errorf("parse stored received amount %q: %w", received, err)
	}
	rec.date = parseTime(txDate)
	rec.createdAt = parseTime(createdAt)
	rec.funded = funded != 0
	return rec, nil
}

func buildUpdate(description *string, amount *decimal.Decimal, date *time.Time) ([]string, []any) {
	var set []string
	var args []any
	if description != nil {
		set = append(set, "description = ?")
		args = append(args, *description)
	}
	if amount != nil {
		set = append(set, "amount = ?")
		args = append(args, amount.String())
	}
	if date != nil {
		set = append(set, "tx_date = ?")
		args = append(args, formatTime(*date))
	}
	return set, args
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
