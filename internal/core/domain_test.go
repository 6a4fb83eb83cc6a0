package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

var testDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestIncomeValidate(t *testing.T) {
	good := Income{
		Description:    "June paycheck",
		Amount:         d("2500"),
		Category:       "Salary",
		Date:           testDate,
		ReceivedAmount: decimal.Zero,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Income)
		wantErr error
	}{
		{"empty description", func(i *Income) { i.Description = "  " }, ErrEmptyDescription},
		{"long description", func(i *Income) { i.Description = strings.Repeat("x", 201) }, nil},
		{"zero amount", func(i *Income) { i.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(i *Income) { i.Amount = d("-1") }, ErrInvalidAmount},
		{"unknown category", func(i *Income) { i.Category = "Rent" }, ErrInvalidCategory},
		{"zero date", func(i *Income) { i.Date = time.Time{} }, ErrZeroDate},
		{"negative received", func(i *Income) { i.ReceivedAmount = d("-5") }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		in := good
		tc.mutate(&in)
		err := in.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Description:    "Rent June",
		Amount:         d("900"),
		Category:       "Rent",
		Date:           testDate,
		BudgetCategory: Needs,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		name    string
		mutate  func(*Expense)
		wantErr error
	}{
		{"empty description", func(e *Expense) { e.Description = "" }, ErrEmptyDescription},
		{"zero amount", func(e *Expense) { e.Amount = decimal.Zero }, ErrInvalidAmount},
		{"income category", func(e *Expense) { e.Category = "Salary" }, ErrInvalidCategory},
		{"bad budget category", func(e *Expense) { e.BudgetCategory = "luxuries" }, ErrInvalidBudgetCategory},
		{"missing budget category", func(e *Expense) { e.BudgetCategory = "" }, ErrInvalidBudgetCategory},
		{"zero date", func(e *Expense) { e.Date = time.Time{} }, ErrZeroDate},
	}
	for _, tc := range bads {
		ex := good
		tc.mutate(&ex)
		err := ex.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestIncomeReceivedStates(t *testing.T) {
	in := Income{Amount: d("1000")}
	if in.Received() {
		t.Fatal("zero receivedAmount should not count as received")
	}
	in.ReceivedAmount = d("600")
	if !in.Received() || in.FullyReceived() {
		t.Fatal("partial receipt should be received but not fully received")
	}
	in.ReceivedAmount = d("1000")
	if !in.FullyReceived() {
		t.Fatal("matching receivedAmount should be fully received")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{" 7 ", "7", true},
		{"0.005", "0.005", true}, // exact value kept, rounding is display-only
		{"", "", false},
		{"0", "", false},
		{"-3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for i, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d (%q): unexpected error %v", i, tc.in, err)
			}
			if !got.Equal(d(tc.want)) {
				t.Fatalf("case %d (%q): got %s, want %s", i, tc.in, got, tc.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("case %d (%q): expected error", i, tc.in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(d("7")); got != "7.00" {
		t.Fatalf("got %q, want 7.00", got)
	}
	if got := FormatAmount(d("1234.567")); got != "1234.57" {
		t.Fatalf("got %q, want 1234.57", got)
	}
}
