package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"paydeck/internal/auth"
	"paydeck/internal/core"
	"paydeck/internal/stats"
)

type bucketDTO struct {
	Target   string `json:"target"`
	Actual   string `json:"actual"`
	Progress int    `json:"progress"`
}

type sliceDTO struct {
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Percent string `json:"percent"`
}

type statsResponse struct {
	TotalIncome   string `json:"total_income"`
	TotalExpenses string `json:"total_expenses"`
	Balance       string `json:"balance"`
	SalaryIncome  string `json:"salary_income"`

	Needs   bucketDTO `json:"needs"`
	Wants   bucketDTO `json:"wants"`
	Savings bucketDTO `json:"savings"`

	Breakdown []sliceDTO `json:"breakdown"`
}

func buildStatsResponse(snap core.Snapshot) statsResponse {
	sum := stats.Compute(snap)

	resp := statsResponse{
		TotalIncome:   core.FormatAmount(sum.TotalIncome),
		TotalExpenses: core.FormatAmount(sum.TotalExpenses),
		Balance:       core.FormatAmount(sum.Balance),
		SalaryIncome:  core.FormatAmount(sum.SalaryIncome),
		Needs: bucketDTO{
			Target:   core.FormatAmount(sum.NeedsTarget),
			Actual:   core.FormatAmount(sum.ActualNeeds),
			Progress: stats.Progress(sum.ActualNeeds, sum.NeedsTarget),
		},
		Wants: bucketDTO{
			Target:   core.FormatAmount(sum.WantsTarget),
			Actual:   core.FormatAmount(sum.ActualWants),
			Progress: stats.Progress(sum.ActualWants, sum.WantsTarget),
		},
		Savings: bucketDTO{
			Target:   core.FormatAmount(sum.SavingsTarget),
			Actual:   core.FormatAmount(sum.ActualSavings),
			Progress: stats.Progress(sum.ActualSavings, sum.SavingsTarget),
		},
		Breakdown: []sliceDTO{},
	}
	for _, slice := range stats.CategoryBreakdown(snap) {
		resp.Breakdown = append(resp.Breakdown, sliceDTO{
			Name:    slice.Name,
			Amount:  core.FormatAmount(slice.Amount),
			Percent: slice.Percent.String(),
		})
	}
	return resp
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if cached, ok := s.statsCache.Get(userID); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	snap, err := s.ledger.Snapshot(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := buildStatsResponse(snap)
	s.statsCache.Set(userID, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	snap, err := s.ledger.Snapshot(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// handleFeed streams snapshots as server-sent events. Each mutation
// produces one "snapshot" event carrying the full record set.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := s.hub.Subscribe(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-sub.C:
			if !open {
				return
			}
			if err := writeSSE(w, "snapshot", toSnapshotDTO(snap)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
