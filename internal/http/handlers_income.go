package http

import (
	"net/http"

	"paydeck/internal/auth"
	"paydeck/internal/core"
	"paydeck/internal/storage"
)

type createIncomeRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createIncomeRequest
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

	in := core.Income{
		UserID:      userID,
		Description: req.Description,
		Amount:      amount,
		Category:    req.Category,
		Date:        date,
	}
	saved, err := s.ledger.AddIncome(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	writeJSON(w, http.StatusCreated, toIncomeDTO(saved))
}

type updateRequest struct {
	Description *string `json:"description"`
	Amount      *string `json:"amount"`
	Date        *string `json:"date"`
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var upd storage.IncomeUpdate
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

	saved, err := s.ledger.UpdateIncome(r.Context(), userID, id, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	writeJSON(w, http.StatusOK, toIncomeDTO(saved))
}

type receivedRequest struct {
	// Amount, when present, records a partial receipt instead of a toggle.
	Amount *string `json:"amount"`
}

func (s *Server) handleReceived(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req receivedRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	var saved core.Income
	var err error
	if req.Amount != nil {
		amount, parseErr := core.ParseReceivedAmount(*req.Amount)
		if parseErr != nil {
			writeDomainError(w, parseErr)
			return
		}
		saved, err = s.ledger.SetReceived(r.Context(), userID, id, amount)
	} else {
		saved, err = s.ledger.ToggleReceived(r.Context(), userID, id)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.statsCache.Delete(userID)
	writeJSON(w, http.StatusOK, toIncomeDTO(saved))
}

type cascadeResponse struct {
	IncomeID    string            `json:"income_id"`
	Deleted     []string          `json:"deleted_expenses"`
	Failed      map[string]string `json:"failed_expenses,omitempty"`
	IncomeError string            `json:"income_error,omitempty"`
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	result, err := s.ledger.DeleteIncomeCascade(r.Context(), userID, id)
	if err != nil && len(result.Expenses) == 0 {
		// Nothing was deleted, report the plain error.
		writeDomainError(w, err)
		return
	}

	resp := cascadeResponse{IncomeID: result.IncomeID, Deleted: []string{}}
	for _, e := range result.Expenses {
		if e.Err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[e.ID] = e.Err.Error()
			continue
		}
		resp.Deleted = append(resp.Deleted, e.ID)
	}
	if result.IncomeErr != nil {
		resp.IncomeError = result.IncomeErr.Error()
	}

	s.statsCache.Delete(userID)
	status := http.StatusOK
	if len(resp.Failed) > 0 || result.IncomeErr != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}
