// Package stats computes the dashboard aggregates. Every function here is a
// pure function of a snapshot: no side effects, no storage access, and the
// whole computation re-runs on each snapshot delivery instead of patching
// previous results.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"paydeck/internal/core"
)

// 50/30/20 rule shares.
var (
	needsShare   = decimal.New(5, -1) // 0.5
	wantsShare   = decimal.New(3, -1) // 0.3
	savingsShare = decimal.New(2, -1) // 0.2
)

// Summary holds the aggregate figures for one owner's record set.
//
// SavingsTarget is keyed off SalaryIncome, not TotalIncome. The asymmetry is
// intentional: only salary counts toward the 20% savings goal.
type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Balance       decimal.Decimal

	SalaryIncome decimal.Decimal

	NeedsTarget   decimal.Decimal
	WantsTarget   decimal.Decimal
	SavingsTarget decimal.Decimal

	ActualNeeds   decimal.Decimal
	ActualWants   decimal.Decimal
	ActualSavings decimal.Decimal
}

// CategorySlice is one wedge of the funded-expense distribution chart.
type CategorySlice struct {
	Name    string
	Amount  decimal.Decimal
	Percent decimal.Decimal // share of funded expenses, one decimal place
}

// Compute derives the full summary from a snapshot.
//
// Only received incomes and funded expenses contribute; everything else is a
// plan, not money that moved. An empty snapshot yields all zeros.
func Compute(s core.Snapshot) Summary {
	sum := Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Balance:       decimal.Zero,
		SalaryIncome:  decimal.Zero,
		ActualNeeds:   decimal.Zero,
		ActualWants:   decimal.Zero,
		ActualSavings: decimal.Zero,
	}

	for _, in := range s.Incomes {
		if !in.Received() {
			continue
		}
		sum.TotalIncome = sum.TotalIncome.Add(in.Amount)
		if in.Category == core.CategorySalary {
			sum.SalaryIncome = sum.SalaryIncome.Add(in.Amount)
		}
	}

	for _, ex := range s.Expenses {
		if !ex.Funded {
			continue
		}
		sum.TotalExpenses = sum.TotalExpenses.Add(ex.Amount)
		if ex.Category == core.CategorySavings {
			sum.ActualSavings = sum.ActualSavings.Add(ex.Amount)
		}
		switch ex.BudgetCategory {
		case core.Needs:
			sum.ActualNeeds = sum.ActualNeeds.Add(ex.Amount)
		case core.Wants:
			sum.ActualWants = sum.ActualWants.Add(ex.Amount)
		}
	}

	sum.Balance = sum.TotalIncome.Sub(sum.TotalExpenses)
	sum.NeedsTarget = sum.TotalIncome.Mul(needsShare)
	sum.WantsTarget = sum.TotalIncome.Mul(wantsShare)
	sum.SavingsTarget = sum.SalaryIncome.Mul(savingsShare)

	return sum
}

// Progress returns the percentage of target covered by actual, clamped to
// the 0..100 range for the budget widgets. A zero or negative target yields
// 0 rather than a division error.
func Progress(actual, target decimal.Decimal) int {
	if !target.IsPositive() {
		return 0
	}
	if actual.IsNegative() {
		return 0
	}
	pct := actual.Mul(decimal.NewFromInt(100)).Div(target).IntPart()
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// CategoryBreakdown groups funded expenses by category for the distribution
// chart, largest first. Percent shares are rounded to one decimal place at
// this presentation boundary; an empty result set performs no division.
func CategoryBreakdown(s core.Snapshot) []CategorySlice {
	byCategory := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, ex := range s.Expenses {
		if !ex.Funded {
			continue
		}
		byCategory[ex.Category] = byCategory[ex.Category].Add(ex.Amount)
		total = total.Add(ex.Amount)
	}
	if len(byCategory) == 0 {
		return nil
	}

	slices := make([]CategorySlice, 0, len(byCategory))
	hundred := decimal.NewFromInt(100)
	for name, amount := range byCategory {
		slices = append(slices, CategorySlice{
			Name:    name,
			Amount:  amount,
			Percent: amount.Mul(hundred).Div(total).Round(1),
		})
	}
	sort.Slice(slices, func(i, j int) bool {
		if !slices[i].Amount.Equal(slices[j].Amount) {
			return slices[i].Amount.GreaterThan(slices[j].Amount)
		}
		return slices[i].Name < slices[j].Name
	})
	return slices
}
