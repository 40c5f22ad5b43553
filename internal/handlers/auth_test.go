package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestRegisterCustomerValidation(t *testing.T) {
	srv := newTestServer(t)
	srv.registerCustomer(t, "Alice", "alice@example.com", "0")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed", `{"name":`, http.StatusBadRequest},
		{"missing password", map[string]any{"name": "Bob", "email": "bob@example.com"}, http.StatusBadRequest},
		{"bad email", map[string]any{"name": "Bob", "email": "bob", "password": "password123"}, http.StatusBadRequest},
		{"password too long", map[string]any{"name": "Bob", "email": "bob@example.com", "password": strings.Repeat("p", 80)}, http.StatusBadRequest},
		{"huge exponent deposit", `{"name":"Bob","email":"bob@example.com","password":"password123","initial_deposit":1e30000000}`, http.StatusBadRequest},
		{"negative deposit", map[string]any{"name": "Bob", "email": "bob@example.com", "password": "password123", "initial_deposit": -1}, http.StatusBadRequest},
		{"text deposit", map[string]any{"name": "Bob", "email": "bob@example.com", "password": "password123", "initial_deposit": "lots"}, http.StatusBadRequest},
		{"duplicate email", map[string]any{"name": "Other", "email": "ALICE@example.com", "password": "password123"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, http.MethodPost, "/customers/register", "", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t)
	srv.registerCustomer(t, "Alice", "alice@example.com", "0")

	wrong := srv.do(t, http.MethodPost, "/customers/login", "", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
	unknown := srv.do(t, http.MethodPost, "/customers/login", "", map[string]string{"email": "ghost@example.com", "password": "password123"})
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401s, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("responses leak which part was wrong: %s vs %s", wrong.Body.String(), unknown.Body.String())
	}

	missing := srv.do(t, http.MethodPost, "/customers/login", "", map[string]string{"email": "alice@example.com"})
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", missing.Code)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	srv := newTestServer(t)
	srv.registerCustomer(t, "Alice", "alice@example.com", "0")
	first := srv.loginCustomer(t, "alice@example.com")
	second := srv.loginCustomer(t, "alice@example.com")

	if rr := srv.do(t, http.MethodGet, "/customers/me/balance", first, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("a new login should replace the old session, got %d", rr.Code)
	}

	rr := srv.do(t, http.MethodPost, "/customers/logout/", second, nil)
	var body map[string]string
	decode(t, rr, &body)
	if rr.Code != http.StatusOK || body["message"] != "Customer logged out" {
		t.Fatalf("unexpected logout %d %v", rr.Code, body)
	}
	if rr := srv.do(t, http.MethodGet, "/customers/me/balance", second, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}

func TestTrailingSlashRoutes(t *testing.T) {
	srv := newTestServer(t)
	rr := srv.do(t, http.MethodPost, "/customers/register/", "", map[string]any{"name": "Alice", "email": "alice@example.com", "password": "password123"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr := srv.do(t, http.MethodGet, "/health/", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
