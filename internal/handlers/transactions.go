package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jinhuaitao/accounting/internal/ledger"
	"github.com/jinhuaitao/accounting/internal/models"
)

// ListTransactions returns the caller's transactions.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.userTransactions(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

// CreateTransaction appends a transaction and returns the updated list.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var draft models.Draft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&draft); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txs, err := h.ledger.Append(r.Context(), UserIDFromContext(r.Context()), draft)
	if errors.Is(err, ledger.ErrInvalidType) {
		h.writeError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	if errors.Is(err, ledger.ErrInvalidAmount) {
		h.writeError(w, http.StatusBadRequest, "amount must be a non-negative number")
		return
	}
	if err != nil {
		h.internalError(w, err, "Failed to create transaction")
		return
	}
	h.writeJSON(w, http.StatusCreated, txs)
}

// DeleteTransaction removes a transaction by id and returns the remaining list.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.Remove(r.Context(), UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.internalError(w, err, "Failed to delete transaction")
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}
