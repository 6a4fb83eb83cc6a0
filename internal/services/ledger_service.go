// Package services orchestrates ledger mutations across storage, the
// live feed, and the event exchange.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"paydeck/internal/amqp"
	"paydeck/internal/core"
	"paydeck/internal/log"
	"paydeck/internal/storage"
)

// ErrLinkedIncomeNotFound is returned when an expense references an
// income the user does not own.
var ErrLinkedIncomeNotFound = errors.New("linked income not found")

// ErrReceivedOutOfRange is returned when a received amount is negative
// or exceeds the income's full amount.
var ErrReceivedOutOfRange = errors.New("received amount out of range")

// EventPublisher publishes mutation events to the exchange.
// *amqp.Client satisfies it.
type EventPublisher interface {
	PublishMutation(ctx context.Context, event *amqp.MutationEvent) error
}

// Notifier wakes live feed subscribers after a mutation.
type Notifier interface {
	Notify(ctx context.Context, userID string)
}

// Ledger is the write side of the dashboard. Every mutation goes
// through here: validate, persist, wake the feed, publish the event.
// Feed and publisher failures never fail the request; the record is
// already saved.
type Ledger struct {
	store  storage.Store
	hub    Notifier
	events EventPublisher
	logger *log.Logger
}

func NewLedger(store storage.Store, hub Notifier, events EventPublisher, logger *log.Logger) *Ledger {
	return &Ledger{
		store:  store,
		hub:    hub,
		events: events,
		logger: logger,
	}
}

// AddIncome validates and stores a new income. New incomes start
// unreceived regardless of what the caller put in ReceivedAmount.
func (l *Ledger) AddIncome(ctx context.Context, in core.Income) (core.Income, error) {
	in.ReceivedAmount = decimal.Zero
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}

	saved, err := l.store.CreateIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}

	l.afterMutation(ctx, saved.UserID, saved.ID, storage.KindIncome, amqp.OpCreated)
	return saved, nil
}

// AddExpense validates and stores a new expense. A non-empty
// LinkedIncomeID must name an income owned by the same user; the link
// cannot be changed afterwards.
func (l *Ledger) AddExpense(ctx context.Context, ex core.Expense) (core.Expense, error) {
	if err := ex.Validate(); err != nil {
		return core.Expense{}, err
	}

	if ex.Linked() {
		if _, err := l.store.GetIncome(ctx, ex.UserID, ex.LinkedIncomeID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return core.Expense{}, ErrLinkedIncomeNotFound
			}
			return core.Expense{}, fmt.Errorf("verify linked income: %w", err)
		}
	}

	saved, err := l.store.CreateExpense(ctx, ex)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	l.afterMutation(ctx, saved.UserID, saved.ID, storage.KindExpense, amqp.OpCreated)
	return saved, nil
}

// UpdateIncome applies a partial update to an owned income.
func (l *Ledger) UpdateIncome(ctx context.Context, userID, id string, upd storage.IncomeUpdate) (core.Income, error) {
	if err := validateIncomeUpdate(upd); err != nil {
		return core.Income{}, err
	}

	if err := l.store.UpdateIncome(ctx, userID, id, upd); err != nil {
		return core.Income{}, err
	}

	saved, err := l.store.GetIncome(ctx, userID, id)
	if err != nil {
		return core.Income{}, fmt.Errorf("reload income: %w", err)
	}

	l.afterMutation(ctx, userID, id, storage.KindIncome, amqp.OpUpdated)
	return saved, nil
}

// UpdateExpense applies a partial update to an owned expense. The
// income link and budget category are not updatable.
func (l *Ledger) UpdateExpense(ctx context.Context, userID, id string, upd storage.ExpenseUpdate) (core.Expense, error) {
	if err := validateExpenseUpdate(upd); err != nil {
		return core.Expense{}, err
	}

	if err := l.store.UpdateExpense(ctx, userID, id, upd); err != nil {
		return core.Expense{}, err
	}

	saved, err := l.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload expense: %w", err)
	}

	l.afterMutation(ctx, userID, id, storage.KindExpense, amqp.OpUpdated)
	return saved, nil
}

// ToggleReceived flips an income between received and not received.
// Any receipt, partial included, toggles back to zero; only a fully
// unreceived income toggles up to the full amount.
func (l *Ledger) ToggleReceived(ctx context.Context, userID, id string) (core.Income, error) {
	in, err := l.store.GetIncome(ctx, userID, id)
	if err != nil {
		return core.Income{}, err
	}

	next := in.Amount
	if in.Received() {
		next = decimal.Zero
	}
	return l.setReceived(ctx, in, next)
}

// SetReceived records a partial receipt. The amount must lie between
// zero and the income's full amount.
func (l *Ledger) SetReceived(ctx context.Context, userID, id string, amount decimal.Decimal) (core.Income, error) {
	in, err := l.store.GetIncome(ctx, userID, id)
	if err != nil {
		return core.Income{}, err
	}

	if amount.IsNegative() || amount.GreaterThan(in.Amount) {
		return core.Income{}, ErrReceivedOutOfRange
	}
	return l.setReceived(ctx, in, amount)
}

func (l *Ledger) setReceived(ctx context.Context, in core.Income, amount decimal.Decimal) (core.Income, error) {
	upd := storage.IncomeUpdate{ReceivedAmount: &amount}
	if err := l.store.UpdateIncome(ctx, in.UserID, in.ID, upd); err != nil {
		return core.Income{}, err
	}
	in.ReceivedAmount = amount

	l.afterMutation(ctx, in.UserID, in.ID, storage.KindIncome, amqp.OpUpdated)
	return in, nil
}

// ToggleFunded flips an expense's funded flag.
func (l *Ledger) ToggleFunded(ctx context.Context, userID, id string) (core.Expense, error) {
	ex, err := l.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}

	funded := !ex.Funded
	upd := storage.ExpenseUpdate{Funded: &funded}
	if err := l.store.UpdateExpense(ctx, userID, id, upd); err != nil {
		return core.Expense{}, err
	}
	ex.Funded = funded

	l.afterMutation(ctx, userID, id, storage.KindExpense, amqp.OpUpdated)
	return ex, nil
}

// DeleteExpense removes an owned expense.
func (l *Ledger) DeleteExpense(ctx context.Context, userID, id string) error {
	if err := l.store.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}

	l.afterMutation(ctx, userID, id, storage.KindExpense, amqp.OpDeleted)
	return nil
}

// ExpenseDeletion is the outcome of one linked-expense delete inside a
// cascade.
type ExpenseDeletion struct {
	ID  string
	Err error
}

// CascadeResult reports what a cascade delete actually did. The income
// is deleted even when some linked expenses fail; callers inspect the
// per-expense errors to see what is left behind.
type CascadeResult struct {
	IncomeID  string
	Expenses  []ExpenseDeletion
	IncomeErr error
}

// Failed reports how many linked expenses could not be deleted.
func (r CascadeResult) Failed() int {
	n := 0
	for _, e := range r.Expenses {
		if e.Err != nil {
			n++
		}
	}
	return n
}

// DeleteIncomeCascade deletes an income together with every expense
// linked to it. Linked expenses are deleted concurrently; the income
// delete runs after all of them have finished, whatever their outcome.
func (l *Ledger) DeleteIncomeCascade(ctx context.Context, userID, id string) (CascadeResult, error) {
	linked, err := l.store.ListLinkedExpenses(ctx, userID, id)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("list linked expenses: %w", err)
	}

	result := CascadeResult{
		IncomeID: id,
		Expenses: make([]ExpenseDeletion, len(linked)),
	}

	var wg sync.WaitGroup
	for i, ex := range linked {
		wg.Add(1)
		go func(i int, exID string) {
			defer wg.Done()
			result.Expenses[i] = ExpenseDeletion{
				ID:  exID,
				Err: l.store.DeleteExpense(ctx, userID, exID),
			}
		}(i, ex.ID)
	}
	wg.Wait()

	result.IncomeErr = l.store.DeleteIncome(ctx, userID, id)

	if failed := result.Failed(); failed > 0 {
		l.logger.WarnContext(ctx, "cascade delete left expenses behind",
			log.FieldUserID, userID,
			log.FieldRecordID, id,
			log.FieldOperation, log.OpCascade,
			"failed", failed)
	}
	// Deleted expenses are gone no matter how the income delete went;
	// subscribers and the export pipeline must hear about them.
	deleted := 0
	for _, e := range result.Expenses {
		if e.Err == nil {
			deleted++
			l.publishEvent(ctx, userID, e.ID, storage.KindExpense, amqp.OpDeleted)
		}
	}

	if result.IncomeErr != nil {
		if deleted > 0 && l.hub != nil {
			l.hub.Notify(ctx, userID)
		}
		return result, result.IncomeErr
	}

	l.afterMutation(ctx, userID, id, storage.KindIncome, amqp.OpDeleted)
	return result, nil
}

// Snapshot returns the user's full ledger.
func (l *Ledger) Snapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	return l.store.ListSnapshot(ctx, userID)
}

func (l *Ledger) afterMutation(ctx context.Context, userID, recordID, kind, op string) {
	if l.hub != nil {
		l.hub.Notify(ctx, userID)
	}
	l.publishEvent(ctx, userID, recordID, kind, op)
}

func (l *Ledger) publishEvent(ctx context.Context, userID, recordID, kind, op string) {
	if l.events == nil {
		return
	}
	event := amqp.NewMutationEvent(userID, recordID, kind, op)
	if err := l.events.PublishMutation(ctx, event); err != nil {
		// Don't fail the request, the record is already persisted.
		l.logger.ErrorContext(ctx, "failed to publish mutation event",
			log.FieldUserID, userID,
			log.FieldRecordID, recordID,
			log.FieldRecordKind, kind,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}

func validateIncomeUpdate(upd storage.IncomeUpdate) error {
	if upd.Description != nil && *upd.Description == "" {
		return core.ErrEmptyDescription
	}
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return core.ErrInvalidAmount
	}
	if upd.ReceivedAmount != nil && upd.ReceivedAmount.IsNegative() {
		return ErrReceivedOutOfRange
	}
	if upd.Date != nil && upd.Date.IsZero() {
		return core.ErrZeroDate
	}
	return nil
}

func validateExpenseUpdate(upd storage.ExpenseUpdate) error {
	if upd.Description != nil && *upd.Description == "" {
		return core.ErrEmptyDescription
	}
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return core.ErrInvalidAmount
	}
	if upd.Date != nil && upd.Date.IsZero() {
		return core.ErrZeroDate
	}
	return nil
}
