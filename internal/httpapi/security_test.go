package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dukaan/backend/internal/domain"
)

func TestResponsesCarrySecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Referrer-Policy":             "strict-origin-when-cross-origin",
		"Access-Control-Allow-Origin": "*",
	}
	for header, value := range want {
		if got := res.Header().Get(header); got != value {
			t.Fatalf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestPreflightNeedsNoSession(t *testing.T) {
	api := newTestAPI(t)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodOptions, "/api/v1/terminals/T1/checkout", nil))

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", res.Code)
	}
	if !strings.Contains(res.Header().Get("Access-Control-Allow-Headers"), "X-CSRF-Token") {
		t.Fatalf("expected preflight to allow the CSRF header")
	}
}

func TestTerminalMutationsNeedCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "staff", "staff123")

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/terminals/T1/cart/items"},
		{http.MethodPatch, "/api/v1/terminals/T1/cart/items/item-donut"},
		{http.MethodPut, "/api/v1/terminals/T1/cart/items/item-donut/note"},
		{http.MethodDelete, "/api/v1/terminals/T1/cart"},
		{http.MethodPut, "/api/v1/terminals/T1/draft"},
		{http.MethodDelete, "/api/v1/terminals/T1/draft"},
		{http.MethodPost, "/api/v1/terminals/T1/checkout"},
	}
	for _, route := range routes {
		for _, csrf := range []string{"", "forged.token"} {
			req := httptest.NewRequest(route.method, route.path, strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			if csrf != "" {
				req.Header.Set("X-CSRF-Token", csrf)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != http.StatusForbidden {
				t.Fatalf("%s %s with csrf %q: expected 403, got %d", route.method, route.path, csrf, res.Code)
			}
		}
	}
}

func TestLoginAttemptsAreThrottled(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	body, _ := json.Marshal(domain.LoginRequest{Username: "staff", Password: "guessing"})

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		codes = append(codes, res.Code)
	}

	for i, code := range codes[:5] {
		if code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before the limit, got %d", i+1, code)
		}
	}
	if codes[5] != http.StatusTooManyRequests {
		t.Fatalf("attempt 6 expected 429, got %d", codes[5])
	}
}

func TestOversizedDraftBodyRejected(t *testing.T) {
	api := newTestAPI(t)
	staff := newClient(t, api, "staff", "staff123")

	note := strings.Repeat("n", (1<<20)+512)
	rec := staff.do(http.MethodPut, "/api/v1/terminals/T1/draft", domain.DraftDetailsRequest{
		Customer: &domain.CustomerInput{Name: "Asha", Note: note},
	})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestManagerPINAttemptsAreThrottled(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)
	body, _ := json.Marshal(domain.PurgeRequest{From: "2026-05-01", To: "2026-05-02", ManagerPIN: "000000"})

	for i := 1; i <= 9; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/purge", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-CSRF-Token", csrf)
		req.RemoteAddr = "127.0.0.1:5001"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		want := http.StatusForbidden
		if i == 9 {
			want = http.StatusTooManyRequests
		}
		if res.Code != want {
			t.Fatalf("purge attempt %d: expected %d, got %d", i, want, res.Code)
		}
	}
}

func TestParsePositiveLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"9999", 200},
		{"", 50},
		{"invalid", 50},
		{"-3", 50},
		{"20", 20},
	}
	for _, tc := range cases {
		if got := parsePositiveLimit(tc.raw, 50, 200); got != tc.want {
			t.Fatalf("parsePositiveLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("csrf token endpoint returned %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf token: %v", err)
	}
	if strings.TrimSpace(payload["csrf_token"]) == "" {
		t.Fatalf("expected csrf_token in response")
	}
	return payload["csrf_token"]
}

// loginAs returns a bearer token for the operator. Logins come from a
// separate address so they do not eat into throttling tests' budget.
func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:4000"
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed with %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected access token for %s", username)
	}
	return payload.AccessToken
}
