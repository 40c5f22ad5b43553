package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"bankledger/internal/ledger"
	"bankledger/internal/middleware"
	"bankledger/internal/models"
	"bankledger/internal/money"
)

type amountRequest struct {
	Amount json.Number `json:"amount"`
}

type transferRequest struct {
	RecipientAccountID int64       `json:"recipient_account_id"`
	Amount             json.Number `json:"amount"`
}

type balanceChangeResponse struct {
	Message    string `json:"message"`
	NewBalance string `json:"new_balance"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	balance, err := h.bank.Balance(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"balance": money.FormatMinor(balance)})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	balance, err := h.bank.Deposit(r.Context(), p, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceChangeResponse{Message: "Deposit successful", NewBalance: money.FormatMinor(balance)})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	balance, err := h.bank.Withdraw(r.Context(), p, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceChangeResponse{Message: "Withdrawal successful", NewBalance: money.FormatMinor(balance)})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.RecipientAccountID == 0 || req.Amount == "" {
		respondError(w, http.StatusBadRequest, "recipient_account_id and amount are required")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := h.bank.Transfer(r.Context(), p, req.RecipientAccountID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceChangeResponse{
		Message:    fmt.Sprintf("Transfer of %s successful to account %d", money.FormatMinor(amount), req.RecipientAccountID),
		NewBalance: money.FormatMinor(balance),
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.respondHistory(w, r, ledger.HistoryFilter{Sort: ledger.SortRecent})
}

func (h *Handler) FilterHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to, err := parseDayRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := ledger.HistoryFilter{From: from, To: to, Sort: ledger.SortRecent}
	if raw := query.Get("transaction_type"); raw != "" {
		txType := models.TransactionType(raw)
		if !txType.Valid() {
			respondError(w, http.StatusBadRequest, "invalid transaction_type, must be one of "+transactionTypeList())
			return
		}
		filter.Type = txType
	}
	h.respondHistory(w, r, filter)
}

func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	description := strings.TrimSpace(r.URL.Query().Get("description"))
	if description == "" {
		respondError(w, http.StatusBadRequest, "description query parameter is required")
		return
	}
	h.respondHistory(w, r, ledger.HistoryFilter{Description: description, Sort: ledger.SortRecent})
}

func (h *Handler) respondHistory(w http.ResponseWriter, r *http.Request, filter ledger.HistoryFilter) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	records, err := h.bank.History(r.Context(), p, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newTransactionResponses(records))
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return 0, false
	}
	if req.Amount == "" {
		respondError(w, http.StatusBadRequest, "amount is required")
		return 0, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return amount, true
}

func transactionTypeList() string {
	names := make([]string, 0, len(models.TransactionTypes))
	for _, t := range models.TransactionTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
