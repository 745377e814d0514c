package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type transactionRequest struct {
	CategoryID string `json:"categoryId"`
	Amount     string `json:"amount"`
	Date       string `json:"date"`
	Kind       string `json:"kind"`
	Direction  string `json:"direction"`
	NeedOrWant string `json:"needOrWant,omitempty"`
}

type transactionResponse struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
	Amount     string `json:"amount"`
	Date       string `json:"date"`
	Kind       string `json:"kind"`
	Direction  string `json:"direction"`
	NeedOrWant string `json:"needOrWant,omitempty"`
}

func toTransactionResponse(t *core.Transaction) transactionResponse {
	return transactionResponse{
		ID:         t.ID,
		CategoryID: t.CategoryID,
		Amount:     t.Amount.String(),
		Date:       t.Date.String(),
		Kind:       string(t.Kind),
		Direction:  string(t.Direction),
		NeedOrWant: string(t.NeedOrWant),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, core.ErrInvalidAmount.Error())
		return
	}
	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, core.ErrInvalidDate.Error())
		return
	}

	t := &core.Transaction{
		ID:         uuid.NewString(),
		OwnerID:    ownerID(r),
		CategoryID: strings.TrimSpace(req.CategoryID),
		Amount:     amount,
		Date:       date,
		Kind:       core.Kind(req.Kind),
		Direction:  core.Direction(req.Direction),
		NeedOrWant: core.NeedOrWant(req.NeedOrWant),
	}
	if err := t.Validate(); err != nil {
		writeStorageError(w, err)
		return
	}
	if err := s.store.CreateTransaction(r.Context(), t); err != nil {
		writeStorageError(w, err)
		return
	}

	s.bumpStatsGeneration(t.OwnerID)
	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	dir := core.Expense
	if v := strings.TrimSpace(r.URL.Query().Get("direction")); v != "" {
		switch core.Direction(v) {
		case core.Income, core.Expense:
			dir = core.Direction(v)
		default:
			writeError(w, http.StatusUnprocessableEntity, core.ErrInvalidDirection.Error())
			return
		}
	}

	transactions, err := s.store.ListTransactions(r.Context(), ownerID(r), dir)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for i := range transactions {
		resp = append(resp, toTransactionResponse(&transactions[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTransaction(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTransaction(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeStorageError(w, err)
		return
	}
	s.bumpStatsGeneration(ownerID(r))
	writeJSON(w, http.StatusNoContent, nil)
}
