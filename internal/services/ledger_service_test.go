package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paydeck/internal/amqp"
	"paydeck/internal/core"
	"paydeck/internal/log"
	"paydeck/internal/storage"
	"paydeck/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.MutationEvent
	err    error
}

func (p *recordingPublisher) PublishMutation(_ context.Context, event *amqp.MutationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Op == op {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *recordingNotifier) Notify(_ context.Context, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testLedger() (*Ledger, *memory.Store, *recordingPublisher, *recordingNotifier) {
	store := memory.New()
	pub := &recordingPublisher{}
	hub := &recordingNotifier{}
	logger := log.New(log.Config{Component: log.ComponentLedger})
	return NewLedger(store, hub, pub, logger), store, pub, hub
}

func validIncome(userID string) core.Income {
	return core.Income{
		UserID:      userID,
		Description: "monthly pay",
		Amount:      dec("2500"),
		Category:    core.CategorySalary,
		Date:        time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func validExpense(userID string) core.Expense {
	return core.Expense{
		UserID:         userID,
		Description:    "rent",
		Amount:         dec("900"),
		Category:       "Rent",
		Date:           time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		BudgetCategory: core.Needs,
	}
}

func TestAddIncomeValidatesBeforeWrite(t *testing.T) {
	ledger, store, pub, _ := testLedger()
	ctx := context.Background()

	bad := validIncome("u1")
	bad.Amount = dec("0")
	if _, err := ledger.AddIncome(ctx, bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("AddIncome = %v, want ErrInvalidAmount", err)
	}

	snap, _ := store.ListSnapshot(ctx, "u1")
	if !snap.Empty() {
		t.Fatal("rejected income reached storage")
	}
	if len(pub.events) != 0 {
		t.Fatal("rejected income published an event")
	}
}

func TestAddIncomeStartsUnreceived(t *testing.T) {
	ledger, _, pub, hub := testLedger()
	ctx := context.Background()

	in := validIncome("u1")
	in.ReceivedAmount = dec("2500")
	saved, err := ledger.AddIncome(ctx, in)
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
	if !saved.ReceivedAmount.IsZero() {
		t.Fatalf("new income received %s, want 0", saved.ReceivedAmount)
	}
	if pub.count(amqp.OpCreated) != 1 {
		t.Fatal("create event not published")
	}
	if len(hub.users) != 1 || hub.users[0] != "u1" {
		t.Fatalf("feed not notified: %v", hub.users)
	}
}

func TestAddExpenseRejectsUnknownLink(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	ex := validExpense("u1")
	ex.LinkedIncomeID = "no-such-income"
	if _, err := ledger.AddExpense(ctx, ex); !errors.Is(err, ErrLinkedIncomeNotFound) {
		t.Fatalf("AddExpense = %v, want ErrLinkedIncomeNotFound", err)
	}
}

func TestAddExpenseRejectsForeignLink(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	other, err := ledger.AddIncome(ctx, validIncome("other-user"))
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}

	ex := validExpense("u1")
	ex.LinkedIncomeID = other.ID
	if _, err := ledger.AddExpense(ctx, ex); !errors.Is(err, ErrLinkedIncomeNotFound) {
		t.Fatalf("AddExpense = %v, want ErrLinkedIncomeNotFound", err)
	}
}

func TestToggleReceivedRoundTrip(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	in, err := ledger.AddIncome(ctx, validIncome("u1"))
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}

	got, err := ledger.ToggleReceived(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !got.ReceivedAmount.Equal(in.Amount) {
		t.Fatalf("toggled on to %s, want %s", got.ReceivedAmount, in.Amount)
	}

	got, err = ledger.ToggleReceived(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if !got.ReceivedAmount.IsZero() {
		t.Fatalf("toggled off to %s, want 0", got.ReceivedAmount)
	}
}

func TestToggleReceivedFromPartial(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	in, _ := ledger.AddIncome(ctx, validIncome("u1"))
	if _, err := ledger.SetReceived(ctx, "u1", in.ID, dec("1000")); err != nil {
		t.Fatalf("SetReceived: %v", err)
	}

	// Any receipt counts as received, so a partial one toggles to zero.
	got, err := ledger.ToggleReceived(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("toggle from partial: %v", err)
	}
	if !got.ReceivedAmount.IsZero() {
		t.Fatalf("toggle from partial receipt: ReceivedAmount = %s, want 0", got.ReceivedAmount)
	}

	got, err = ledger.ToggleReceived(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !got.ReceivedAmount.Equal(in.Amount) {
		t.Fatalf("toggle from zero: ReceivedAmount = %s, want %s", got.ReceivedAmount, in.Amount)
	}
}

func TestSetReceivedBounds(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	in, _ := ledger.AddIncome(ctx, validIncome("u1"))

	if _, err := ledger.SetReceived(ctx, "u1", in.ID, dec("-1")); !errors.Is(err, ErrReceivedOutOfRange) {
		t.Fatalf("negative = %v, want ErrReceivedOutOfRange", err)
	}
	if _, err := ledger.SetReceived(ctx, "u1", in.ID, dec("2500.01")); !errors.Is(err, ErrReceivedOutOfRange) {
		t.Fatalf("over full = %v, want ErrReceivedOutOfRange", err)
	}
	if _, err := ledger.SetReceived(ctx, "u1", in.ID, dec("2500")); err != nil {
		t.Fatalf("exactly full = %v", err)
	}
}

func TestToggleFunded(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	ex, err := ledger.AddExpense(ctx, validExpense("u1"))
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	got, err := ledger.ToggleFunded(ctx, "u1", ex.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !got.Funded {
		t.Fatal("expense not funded after toggle")
	}
	got, _ = ledger.ToggleFunded(ctx, "u1", ex.ID)
	if got.Funded {
		t.Fatal("expense still funded after second toggle")
	}
}

func TestDeleteIncomeCascade(t *testing.T) {
	ledger, store, pub, _ := testLedger()
	ctx := context.Background()

	in, _ := ledger.AddIncome(ctx, validIncome("u1"))
	for i := 0; i < 3; i++ {
		ex := validExpense("u1")
		ex.LinkedIncomeID = in.ID
		if _, err := ledger.AddExpense(ctx, ex); err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
	}
	unlinked, _ := ledger.AddExpense(ctx, validExpense("u1"))

	result, err := ledger.DeleteIncomeCascade(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(result.Expenses) != 3 || result.Failed() != 0 {
		t.Fatalf("cascade result = %+v", result)
	}

	snap, _ := store.ListSnapshot(ctx, "u1")
	if len(snap.Incomes) != 0 {
		t.Fatal("income survived cascade")
	}
	if len(snap.Expenses) != 1 || snap.Expenses[0].ID != unlinked.ID {
		t.Fatalf("unlinked expense touched: %+v", snap.Expenses)
	}
	if pub.count(amqp.OpDeleted) != 4 {
		t.Fatalf("published %d delete events, want 4", pub.count(amqp.OpDeleted))
	}
}

// failingDeletes fails DeleteExpense for a chosen set of ids.
type failingDeletes struct {
	*memory.Store
	failIDs map[string]bool
}

var errInjected = errors.New("injected delete failure")

func (f *failingDeletes) DeleteExpense(ctx context.Context, userID, id string) error {
	if f.failIDs[id] {
		return errInjected
	}
	return f.Store.DeleteExpense(ctx, userID, id)
}

func TestCascadeDeletesIncomeDespiteExpenseFailures(t *testing.T) {
	store := &failingDeletes{Store: memory.New(), failIDs: map[string]bool{}}
	logger := log.New(log.Config{Component: log.ComponentLedger})
	ledger := NewLedger(store, nil, nil, logger)
	ctx := context.Background()

	in, _ := ledger.AddIncome(ctx, validIncome("u1"))
	var stuck core.Expense
	for i := 0; i < 3; i++ {
		ex := validExpense("u1")
		ex.LinkedIncomeID = in.ID
		saved, err := ledger.AddExpense(ctx, ex)
		if err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
		if i == 1 {
			stuck = saved
			store.failIDs[saved.ID] = true
		}
	}

	result, err := ledger.DeleteIncomeCascade(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if result.Failed() != 1 {
		t.Fatalf("failed = %d, want 1", result.Failed())
	}
	for _, e := range result.Expenses {
		if e.ID == stuck.ID && !errors.Is(e.Err, errInjected) {
			t.Fatalf("stuck expense error = %v", e.Err)
		}
	}

	// The income goes away even though one linked expense did not.
	if _, err := store.GetIncome(ctx, "u1", in.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("income still present: %v", err)
	}
	if _, err := store.GetExpense(ctx, "u1", stuck.ID); err != nil {
		t.Fatalf("stuck expense should remain: %v", err)
	}
}

// failingIncomeDelete fails every DeleteIncome call.
type failingIncomeDelete struct {
	*memory.Store
}

func (f *failingIncomeDelete) DeleteIncome(context.Context, string, string) error {
	return errInjected
}

func TestCascadeIncomeFailureStillAnnouncesExpenseDeletes(t *testing.T) {
	store := &failingIncomeDelete{Store: memory.New()}
	pub := &recordingPublisher{}
	hub := &recordingNotifier{}
	logger := log.New(log.Config{Component: log.ComponentLedger})
	ledger := NewLedger(store, hub, pub, logger)
	ctx := context.Background()

	in, _ := ledger.AddIncome(ctx, validIncome("u1"))
	for i := 0; i < 2; i++ {
		ex := validExpense("u1")
		ex.LinkedIncomeID = in.ID
		if _, err := ledger.AddExpense(ctx, ex); err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
	}
	notified := len(hub.users)
	published := pub.count(amqp.OpDeleted)

	result, err := ledger.DeleteIncomeCascade(ctx, "u1", in.ID)
	if !errors.Is(err, errInjected) {
		t.Fatalf("cascade = %v, want injected failure", err)
	}
	if len(result.Expenses) != 2 || result.Failed() != 0 {
		t.Fatalf("cascade result = %+v", result)
	}

	// The linked expenses are gone, so subscribers and the export
	// pipeline hear about them even though the income delete failed.
	if pub.count(amqp.OpDeleted)-published != 2 {
		t.Fatalf("published %d delete events, want 2", pub.count(amqp.OpDeleted)-published)
	}
	if len(hub.users) == notified {
		t.Fatal("feed not notified after linked expenses were deleted")
	}
}

func TestCascadeMissingIncome(t *testing.T) {
	ledger, _, _, _ := testLedger()

	result, err := ledger.DeleteIncomeCascade(context.Background(), "u1", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cascade = %v, want ErrNotFound", err)
	}
	if !errors.Is(result.IncomeErr, storage.ErrNotFound) {
		t.Fatalf("IncomeErr = %v, want ErrNotFound", result.IncomeErr)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{err: errors.New("broker down")}
	logger := log.New(log.Config{Component: log.ComponentLedger})
	ledger := NewLedger(store, nil, pub, logger)

	if _, err := ledger.AddIncome(context.Background(), validIncome("u1")); err != nil {
		t.Fatalf("AddIncome failed on publish error: %v", err)
	}
	snap, _ := store.ListSnapshot(context.Background(), "u1")
	if len(snap.Incomes) != 1 {
		t.Fatal("income not persisted")
	}
}

func TestUpdateValidation(t *testing.T) {
	ledger, _, _, _ := testLedger()
	ctx := context.Background()

	in, _ := ledger.AddIncome(ctx, validIncome("u1"))

	empty := ""
	if _, err := ledger.UpdateIncome(ctx, "u1", in.ID, storage.IncomeUpdate{Description: &empty}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("empty description = %v", err)
	}
	zero := dec("0")
	if _, err := ledger.UpdateIncome(ctx, "u1", in.ID, storage.IncomeUpdate{Amount: &zero}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero amount = %v", err)
	}

	desc := "bonus"
	got, err := ledger.UpdateIncome(ctx, "u1", in.ID, storage.IncomeUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != "bonus" {
		t.Fatalf("description = %q", got.Description)
	}
}
