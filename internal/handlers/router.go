package handlers

import (
	"net/http"

	"bankledger/internal/config"
	"bankledger/internal/middleware"
	"bankledger/internal/models"
	"bankledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg     config.Config
	auth    AuthService
	bank    BankService
	reports ReportService
	hub     *websocket.Hub
}

func New(cfg config.Config, auth AuthService, bank BankService, reports ReportService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:     cfg,
		auth:    auth,
		bank:    bank,
		reports: reports,
		hub:     hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.QueryToken("token"))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.StripSlashes)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.auth)
	managerOnly := middleware.RequireRole(models.KindManager)
	customerOnly := middleware.RequireRole(models.KindCustomer)

	router.Route("/managers", func(r chi.Router) {
		r.Post("/register", h.RegisterManager)
		r.Post("/login", h.LoginManager)
		r.Group(func(r chi.Router) {
			r.Use(authenticated, managerOnly)
			r.Post("/logout", h.Logout)
			r.Get("/stats", h.Stats)
			r.Get("/customers", h.ListCustomers)
			r.Get("/customers/search", h.SearchCustomers)
			r.Get("/customers/{id}/transactions", h.CustomerTransactions)
			r.Get("/transactions", h.AllTransactions)
		})
	})

	router.Route("/customers", func(r chi.Router) {
		r.Post("/register", h.RegisterCustomer)
		r.Post("/login", h.LoginCustomer)
		r.Group(func(r chi.Router) {
			r.Use(authenticated, customerOnly)
			r.Post("/logout", h.Logout)
			r.Get("/me/balance", h.Balance)
			r.Post("/me/deposit", h.Deposit)
			r.Post("/me/withdraw", h.Withdraw)
			r.Post("/me/transfer", h.Transfer)
			r.Get("/me/transactions", h.History)
			r.Get("/me/transactions/filter", h.FilterHistory)
			r.Get("/me/transactions/search", h.SearchHistory)
		})
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

// WSBalances streams balance updates to a customer. Browsers cannot set
// headers on websocket upgrades, so the token may also come as ?token=,
// which the QueryToken middleware has already moved off the URL.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.QueryTokenFromContext(r.Context())
	if !ok {
		bearer, err := middleware.BearerToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		token = bearer
	}
	p, err := h.auth.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Role != models.KindCustomer {
		respondError(w, http.StatusForbidden, "customer privileges required")
		return
	}
	websocket.ServeWS(w, r, h.hub, p.ID)
}
