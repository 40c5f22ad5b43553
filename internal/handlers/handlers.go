package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/money"
	"bankledger/internal/services"
	"bankledger/internal/session"
)

const retryAfterSeconds = "1"

type customerResponse struct {
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
}

type transactionResponse struct {
	TransactionID   int64                  `json:"transaction_id"`
	AccountID       int64                  `json:"account_id"`
	TransactionType models.TransactionType `json:"transaction_type"`
	Amount          string                 `json:"amount"`
	Timestamp       time.Time              `json:"timestamp"`
	Description     string                 `json:"description"`
}

type statsResponse struct {
	TotalCustomers    int64  `json:"total_customers"`
	TotalTransactions int64  `json:"total_transactions"`
	TotalBalance      string `json:"total_balance"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// writeError maps service and ledger errors onto HTTP statuses. Anything it
// does not recognise is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrSelfTransfer):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicateIdentity):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrContention):
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func newCustomerResponse(account models.Account) customerResponse {
	return customerResponse{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Identity,
		Balance:   money.FormatMinor(account.Balance),
	}
}

func newTransactionResponses(records []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, transactionResponse{
			TransactionID:   record.ID,
			AccountID:       record.AccountID,
			TransactionType: record.Type,
			Amount:          money.FormatMinor(record.Amount),
			Timestamp:       record.Timestamp,
			Description:     record.Description,
		})
	}
	return out
}
