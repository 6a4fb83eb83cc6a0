// Package memory provides an in-process Store used by tests and the
// "memory" data backend. It mirrors the SQLite store's semantics, including
// terminal not-found deletes and snapshot ordering.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"paydeck/internal/core"
	"paydeck/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	incomes  map[string]core.Income
	expenses map[string]core.Expense
	users    map[string]storage.User // keyed by email
}

var (
	_ storage.Store     = (*Store)(nil)
	_ storage.UserStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		incomes:  make(map[string]core.Income),
		expenses: make(map[string]core.Expense),
		users:    make(map[string]storage.User),
	}
}

func (s *Store) CreateIncome(_ context.Context, in core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = uuid.NewString()
	in.CreatedAt = time.Now().UTC()
	s.incomes[in.ID] = in
	return in, nil
}

func (s *Store) CreateExpense(_ context.Context, ex core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex.ID = uuid.NewString()
	ex.CreatedAt = time.Now().UTC()
	s.expenses[ex.ID] = ex
	return ex, nil
}

func (s *Store) GetIncome(_ context.Context, userID, id string) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.incomes[id]
	if !ok || in.UserID != userID {
		return core.Income{}, storage.ErrNotFound
	}
	return in, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.expenses[id]
	if !ok || ex.UserID != userID {
		return core.Expense{}, storage.ErrNotFound
	}
	return ex, nil
}

func (s *Store) UpdateIncome(_ context.Context, userID, id string, upd storage.IncomeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.incomes[id]
	if !ok || in.UserID != userID {
		return storage.ErrNotFound
	}
	if upd.Description != nil {
		in.Description = *upd.Description
	}
	if upd.Amount != nil {
		in.Amount = *upd.Amount
	}
	if upd.Date != nil {
		in.Date = *upd.Date
	}
	if upd.ReceivedAmount != nil {
		in.ReceivedAmount = *upd.ReceivedAmount
	}
	s.incomes[id] = in
	return nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id string, upd storage.ExpenseUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.expenses[id]
	if !ok || ex.UserID != userID {
		return storage.ErrNotFound
	}
	if upd.Description != nil {
		ex.Description = *upd.Description
	}
	if upd.Amount != nil {
		ex.Amount = *upd.Amount
	}
	if upd.Date != nil {
		ex.Date = *upd.Date
	}
	if upd.Funded != nil {
		ex.Funded = *upd.Funded
	}
	s.expenses[id] = ex
	return nil
}

func (s *Store) DeleteIncome(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.incomes[id]
	if !ok || in.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.incomes, id)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.expenses[id]
	if !ok || ex.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ListSnapshot(_ context.Context, userID string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap core.Snapshot
	for _, in := range s.incomes {
		if in.UserID == userID {
			snap.Incomes = append(snap.Incomes, in)
		}
	}
	for _, ex := range s.expenses {
		if ex.UserID == userID {
			snap.Expenses = append(snap.Expenses, ex)
		}
	}
	sort.Slice(snap.Incomes, func(i, j int) bool {
		return newerFirst(snap.Incomes[i].Date, snap.Incomes[i].CreatedAt,
			snap.Incomes[j].Date, snap.Incomes[j].CreatedAt)
	})
	sort.Slice(snap.Expenses, func(i, j int) bool {
		return newerFirst(snap.Expenses[i].Date, snap.Expenses[i].CreatedAt,
			snap.Expenses[j].Date, snap.Expenses[j].CreatedAt)
	})
	return snap, nil
}

func (s *Store) ListLinkedExpenses(_ context.Context, userID, incomeID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Expense
	for _, ex := range s.expenses {
		if ex.UserID == userID && ex.LinkedIncomeID == incomeID {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[i].CreatedAt, out[j].Date, out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Email]; exists {
		return storage.ErrDuplicateEmail
	}
	s.users[u.Email] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func newerFirst(dateI, createdI, dateJ, createdJ time.Time) bool {
	if !dateI.Equal(dateJ) {
		return dateI.After(dateJ)
	}
	return createdI.After(createdJ)
}
