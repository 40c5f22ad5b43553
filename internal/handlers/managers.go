package handlers

import (
	"net/http"
	"strings"

	"bankledger/internal/ledger"
	"bankledger/internal/middleware"
	"bankledger/internal/money"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	stats, err := h.reports.Stats(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statsResponse{
		TotalCustomers:    stats.Customers,
		TotalTransactions: stats.Transactions,
		TotalBalance:      money.FormatMinor(stats.TotalBalance),
	})
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	h.respondCustomers(w, r, ledger.CustomerFilter{})
}

// SearchCustomers combines name (substring, case-insensitive), email (exact)
// and account_id filters. With no filters it lists every customer.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ledger.CustomerFilter{
		Name:  strings.TrimSpace(query.Get("name")),
		Email: strings.ToLower(strings.TrimSpace(query.Get("email"))),
	}
	if raw := query.Get("account_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.AccountID = id
	}
	h.respondCustomers(w, r, filter)
}

func (h *Handler) respondCustomers(w http.ResponseWriter, r *http.Request, filter ledger.CustomerFilter) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	accounts, err := h.reports.Customers(r.Context(), p, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]customerResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, newCustomerResponse(account))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) CustomerTransactions(w http.ResponseWriter, r *http.Request) {
	customerID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	records, err := h.reports.CustomerTransactions(r.Context(), p, customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newTransactionResponses(records))
}

func (h *Handler) AllTransactions(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	records, err := h.reports.Transactions(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newTransactionResponses(records))
}
