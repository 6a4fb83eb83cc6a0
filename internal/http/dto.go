package http

import (
	"fmt"
	"time"

	"paydeck/internal/core"
)

// Dates accepted on the wire, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// incomeDTO is the wire shape of an income. Amounts are strings rounded
// to two decimals; internal precision never reaches the client.
type incomeDTO struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	Date           string `json:"date"`
	ReceivedAmount string `json:"received_amount"`
	Received       bool   `json:"received"`
}

type expenseDTO struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	Date           string `json:"date"`
	BudgetCategory string `json:"budget_category"`
	Funded         bool   `json:"funded"`
	LinkedIncomeID string `json:"linked_income_id,omitempty"`
}

type snapshotDTO struct {
	Incomes  []incomeDTO  `json:"incomes"`
	Expenses []expenseDTO `json:"expenses"`
}

func toIncomeDTO(in core.Income) incomeDTO {
	return incomeDTO{
		ID:             in.ID,
		Description:    in.Description,
		Amount:         core.FormatAmount(in.Amount),
		Category:       in.Category,
		Date:           in.Date.Format(dateLayout),
		ReceivedAmount: core.FormatAmount(in.ReceivedAmount),
		Received:       in.Received(),
	}
}

func toExpenseDTO(ex core.Expense) expenseDTO {
	return expenseDTO{
		ID:             ex.ID,
		Description:    ex.Description,
		Amount:         core.FormatAmount(ex.Amount),
		Category:       ex.Category,
		Date:           ex.Date.Format(dateLayout),
		BudgetCategory: string(ex.BudgetCategory),
		Funded:         ex.Funded,
		LinkedIncomeID: ex.LinkedIncomeID,
	}
}

func toSnapshotDTO(snap core.Snapshot) snapshotDTO {
	out := snapshotDTO{
		Incomes:  make([]incomeDTO, 0, len(snap.Incomes)),
		Expenses: make([]expenseDTO, 0, len(snap.Expenses)),
	}
	for _, in := range snap.Incomes {
		out.Incomes = append(out.Incomes, toIncomeDTO(in))
	}
	for _, ex := range snap.Expenses {
		out.Expenses = append(out.Expenses, toExpenseDTO(ex))
	}
	return out
}
