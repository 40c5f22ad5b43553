package handlers

import (
	"encoding/json"
	"net/http"

	"bankledger/internal/middleware"
	"bankledger/internal/models"
	"bankledger/internal/services"
)

type managerCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type customerRegisterRequest struct {
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	InitialDeposit json.Number `json:"initial_deposit"`
}

type customerCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterManager(w http.ResponseWriter, r *http.Request) {
	var req managerCredentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if _, err := h.auth.RegisterManager(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "Manager registered successfully"})
}

func (h *Handler) LoginManager(w http.ResponseWriter, r *http.Request) {
	var req managerCredentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.auth.LoginManager(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"access_token": result.Token})
}

func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	deposit, err := parseOptionalAmount(req.InitialDeposit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid initial_deposit")
		return
	}
	account, err := h.auth.RegisterCustomer(r.Context(), services.CustomerRegistration{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		InitialDeposit: deposit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":    "Customer registered successfully",
		"account_id": account.ID,
	})
}

func (h *Handler) LoginCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerCredentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.auth.LoginCustomer(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": result.Token,
		"account_id":   result.Account.ID,
	})
}

// Logout serves both roles; the route group decides which role may call it.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	p, _ := middleware.PrincipalFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	message := "Customer logged out"
	if p.Role == models.KindManager {
		message = "Manager logged out"
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}
