package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paydeck/internal/core"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func income(amount, received, category string) core.Income {
	return core.Income{
		ID:             "in-" + amount,
		UserID:         "u1",
		Description:    "paycheck",
		Amount:         dec(amount),
		Category:       category,
		Date:           time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ReceivedAmount: dec(received),
	}
}

func expense(amount, category string, budget core.BudgetCategory, funded bool) core.Expense {
	return core.Expense{
		ID:             "ex-" + amount + "-" + category,
		UserID:         "u1",
		Description:    "cost",
		Amount:         dec(amount),
		Category:       category,
		Date:           time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		BudgetCategory: budget,
		Funded:         funded,
	}
}

func TestComputeEmptySnapshot(t *testing.T) {
	sum := Compute(core.Snapshot{})

	zeros := map[string]decimal.Decimal{
		"TotalIncome":   sum.TotalIncome,
		"TotalExpenses": sum.TotalExpenses,
		"Balance":       sum.Balance,
		"SalaryIncome":  sum.SalaryIncome,
		"NeedsTarget":   sum.NeedsTarget,
		"WantsTarget":   sum.WantsTarget,
		"SavingsTarget": sum.SavingsTarget,
		"ActualNeeds":   sum.ActualNeeds,
		"ActualWants":   sum.ActualWants,
		"ActualSavings": sum.ActualSavings,
	}
	for name, v := range zeros {
		if !v.IsZero() {
			t.Fatalf("%s = %s, want 0 for empty snapshot", name, v)
		}
	}
}

func TestComputeReferenceScenario(t *testing.T) {
	// One salary of 1000 fully received, one funded needs expense of 300.
	s := core.Snapshot{
		Incomes:  []core.Income{income("1000", "1000", "Salary")},
		Expenses: []core.Expense{expense("300", "Rent", core.Needs, true)},
	}
	sum := Compute(s)

	want := map[string]string{
		"TotalIncome":   "1000",
		"TotalExpenses": "300",
		"Balance":       "700",
		"SalaryIncome":  "1000",
		"NeedsTarget":   "500",
		"WantsTarget":   "300",
		"SavingsTarget": "200",
		"ActualNeeds":   "300",
	}
	got := map[string]decimal.Decimal{
		"TotalIncome":   sum.TotalIncome,
		"TotalExpenses": sum.TotalExpenses,
		"Balance":       sum.Balance,
		"SalaryIncome":  sum.SalaryIncome,
		"NeedsTarget":   sum.NeedsTarget,
		"WantsTarget":   sum.WantsTarget,
		"SavingsTarget": sum.SavingsTarget,
		"ActualNeeds":   sum.ActualNeeds,
	}
	for name, w := range want {
		if !got[name].Equal(dec(w)) {
			t.Fatalf("%s = %s, want %s", name, got[name], w)
		}
	}
	if !sum.ActualWants.IsZero() || !sum.ActualSavings.IsZero() {
		t.Fatalf("wants/savings actuals should be zero, got %s / %s", sum.ActualWants, sum.ActualSavings)
	}
}

func TestBalanceIdentity(t *testing.T) {
	snapshots := []core.Snapshot{
		{},
		{Incomes: []core.Income{income("1200.50", "1200.50", "Salary"), income("80", "0", "Freelance")}},
		{
			Incomes:  []core.Income{income("500", "250", "Other")},
			Expenses: []core.Expense{expense("700", "Rent", core.Needs, true), expense("19.99", "Shopping", core.Wants, true)},
		},
	}
	for i, s := range snapshots {
		sum := Compute(s)
		if !sum.TotalIncome.Sub(sum.TotalExpenses).Equal(sum.Balance) {
			t.Fatalf("snapshot %d: income-expenses=%s but balance=%s",
				i, sum.TotalIncome.Sub(sum.TotalExpenses), sum.Balance)
		}
	}
}

func TestNegativeBalancePermitted(t *testing.T) {
	s := core.Snapshot{
		Expenses: []core.Expense{expense("250", "Groceries", core.Needs, true)},
	}
	sum := Compute(s)
	if !sum.Balance.Equal(dec("-250")) {
		t.Fatalf("balance = %s, want -250", sum.Balance)
	}
}

func TestUnreceivedIncomeExcluded(t *testing.T) {
	s := core.Snapshot{
		Incomes: []core.Income{
			income("1000", "0", "Salary"),
			income("400", "400", "Freelance"),
		},
	}
	sum := Compute(s)
	if !sum.TotalIncome.Equal(dec("400")) {
		t.Fatalf("totalIncome = %s, want 400 (unreceived excluded)", sum.TotalIncome)
	}
	if !sum.SalaryIncome.IsZero() {
		t.Fatalf("salaryIncome = %s, want 0 (salary not received)", sum.SalaryIncome)
	}
	// A partial receipt still counts the full expected amount.
	partial := core.Snapshot{Incomes: []core.Income{income("1000", "600", "Salary")}}
	if got := Compute(partial).TotalIncome; !got.Equal(dec("1000")) {
		t.Fatalf("partial receipt totalIncome = %s, want 1000", got)
	}
}

func TestUnfundedExpenseNeverContributes(t *testing.T) {
	for _, budget := range []core.BudgetCategory{core.Needs, core.Wants, core.Savings} {
		s := core.Snapshot{
			Expenses: []core.Expense{expense("123.45", "Savings", budget, false)},
		}
		sum := Compute(s)
		if !sum.TotalExpenses.IsZero() || !sum.ActualNeeds.IsZero() ||
			!sum.ActualWants.IsZero() || !sum.ActualSavings.IsZero() {
			t.Fatalf("budget %q: unfunded expense leaked into aggregates: %+v", budget, sum)
		}
	}
}

func TestNeedsPlusWantsBoundedByTotal(t *testing.T) {
	// When every funded expense is classified needs or wants, the two
	// actuals partition the total exactly.
	s := core.Snapshot{
		Expenses: []core.Expense{
			expense("100", "Rent", core.Needs, true),
			expense("40.25", "Entertainment", core.Wants, true),
			expense("60", "Groceries", core.Needs, true),
			expense("9.99", "Shopping", core.Wants, false),
		},
	}
	sum := Compute(s)
	if sum.ActualNeeds.Add(sum.ActualWants).GreaterThan(sum.TotalExpenses) {
		t.Fatalf("needs+wants %s exceeds total %s",
			sum.ActualNeeds.Add(sum.ActualWants), sum.TotalExpenses)
	}
	// With a savings-classified expense in the mix it stays a strict bound.
	s.Expenses = append(s.Expenses, expense("50", "Savings", core.Savings, true))
	sum = Compute(s)
	if sum.ActualNeeds.Add(sum.ActualWants).GreaterThanOrEqual(sum.TotalExpenses) {
		t.Fatalf("savings expense must be outside needs+wants: %s vs %s",
			sum.ActualNeeds.Add(sum.ActualWants), sum.TotalExpenses)
	}
}

func TestSavingsTargetKeyedOffSalary(t *testing.T) {
	s := core.Snapshot{
		Incomes: []core.Income{
			income("1000", "1000", "Salary"),
			income("500", "500", "Freelance"),
		},
	}
	sum := Compute(s)
	// Needs and wants targets follow total income, savings follows salary only.
	if !sum.NeedsTarget.Equal(dec("750")) {
		t.Fatalf("needsTarget = %s, want 750", sum.NeedsTarget)
	}
	if !sum.SavingsTarget.Equal(dec("200")) {
		t.Fatalf("savingsTarget = %s, want 200 (salary-based)", sum.SavingsTarget)
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		actual, target string
		want           int
	}{
		{"0", "0", 0},     // zero target is 0%, not an error
		{"50", "0", 0},    // overspend against no target still 0%
		{"50", "100", 50},
		{"100", "100", 100},
		{"150", "100", 100}, // clamped
		{"-10", "100", 0},
		{"1", "3", 33},
	}
	for i, tc := range cases {
		if got := Progress(dec(tc.actual), dec(tc.target)); got != tc.want {
			t.Fatalf("case %d: Progress(%s, %s) = %d, want %d", i, tc.actual, tc.target, got, tc.want)
		}
	}
}

func TestCategoryBreakdown(t *testing.T) {
	s := core.Snapshot{
		Expenses: []core.Expense{
			expense("75", "Rent", core.Needs, true),
			expense("25", "Groceries", core.Needs, true),
			expense("500", "Shopping", core.Wants, false), // unfunded, excluded
		},
	}
	slices := CategoryBreakdown(s)
	if len(slices) != 2 {
		t.Fatalf("got %d slices, want 2", len(slices))
	}
	if slices[0].Name != "Rent" || !slices[0].Percent.Equal(dec("75")) {
		t.Fatalf("first slice = %s %s%%, want Rent 75%%", slices[0].Name, slices[0].Percent)
	}
	if slices[1].Name != "Groceries" || !slices[1].Percent.Equal(dec("25")) {
		t.Fatalf("second slice = %s %s%%, want Groceries 25%%", slices[1].Name, slices[1].Percent)
	}

	if got := CategoryBreakdown(core.Snapshot{}); got != nil {
		t.Fatalf("empty snapshot breakdown = %v, want nil", got)
	}
}
