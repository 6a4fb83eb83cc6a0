package http

import (
	"net/http"

	"paydeck/internal/auth"
	"paydeck/internal/core"
	"paydeck/internal/storage"
)

type createExpenseRequest struct {
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	Date           string `json:"date"`
	BudgetCategory string `json:"budget_category"`
	LinkedIncomeID string `json:"linked_income_id"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ex := core.Expense{
		UserID:         userID,
		Description:    req.Description,
		Amount:         amount,
		Category:       req.Category,
		Date:           date,
		BudgetCategory: core.BudgetCategory(req.BudgetCategory),
		LinkedIncomeID: req.LinkedIncomeID,
	}
	saved, err := s.ledger.AddExpense(r.Context(), ex)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	writeJSON(w, http.StatusCreated, toExpenseDTO(saved))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var upd storage.ExpenseUpdate
	upd.Description = req.Description
	if req.Amount != nil {
		amount, err := core.ParseAmount(*req.Amount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		upd.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		upd.Date = &date
	}

	saved, err := s.ledger.UpdateExpense(r.Context(), userID, id, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	writeJSON(w, http.StatusOK, toExpenseDTO(saved))
}

func (s *Server) handleFunded(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	saved, err := s.ledger.ToggleFunded(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	writeJSON(w, http.StatusOK, toExpenseDTO(saved))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	if err := s.ledger.DeleteExpense(r.Context(), userID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	w.WriteHeader(http.StatusNoContent)
}
