package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/ledger"
	"bankledger/internal/services"
	"bankledger/internal/session"
	"bankledger/internal/websocket"
)

var testClock = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	hub     *websocket.Hub
	ledger  *ledger.Memory
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	l := ledger.NewMemory(ledger.Options{Clock: func() time.Time { return testClock }})
	sessions := session.NewManager(session.NewMemoryStore(), "test-secret", 0)
	hub := websocket.NewHub()
	h := New(
		config.Config{AllowedOrigins: "*"},
		services.NewAuthService(l, sessions),
		services.NewBankService(l, hub, nil),
		services.NewReportService(l),
		hub,
	)
	return testServer{handler: h.Routes(), hub: hub, ledger: l}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s testServer) registerCustomer(t *testing.T, name, email string, deposit string) int64 {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/customers/register", "", map[string]any{
		"name":            name,
		"email":           email,
		"password":        "password123",
		"initial_deposit": json.Number(deposit),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, rr.Code, rr.Body.String())
	}
	var resp struct {
		AccountID int64 `json:"account_id"`
	}
	decode(t, rr, &resp)
	return resp.AccountID
}

func (s testServer) loginCustomer(t *testing.T, email string) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/customers/login", "", map[string]string{"email": email, "password": "password123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rr, &resp)
	return resp.AccessToken
}

func (s testServer) managerToken(t *testing.T) string {
	t.Helper()
	creds := map[string]string{"username": "branch_manager", "password": "password123"}
	if rr := s.do(t, http.MethodPost, "/managers/register", "", creds); rr.Code != http.StatusCreated {
		t.Fatalf("register manager: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr := s.do(t, http.MethodPost, "/managers/login", "", creds)
	if rr.Code != http.StatusOK {
		t.Fatalf("login manager: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rr, &resp)
	return resp.AccessToken
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}
