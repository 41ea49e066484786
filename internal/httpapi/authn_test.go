package httpapi

import (
	"context"
	"net/http"
	"testing"

	"mecone.com/internal/audit"
	"mecone.com/internal/auth"
)

func TestAuthGateRejectionMessages(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "No authorization header provided"},
		{"wrong scheme", "Basic abc123", "No token provided"},
		{"empty token", "Bearer ", "No token provided"},
		{"garbage token", "Bearer not-a-jwt", "Invalid or expired token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := ""
			if tc.header != "" {
				// Bypass the helper's Bearer prefix to control the raw header.
				code, body := env.doJSONWithHeader(t, http.MethodGet, "/api/auth/me", tc.header)
				if code != http.StatusUnauthorized || message(body) != tc.message {
					t.Fatalf("status %d, body %v", code, body)
				}
				return
			}
			code, body := env.doJSON(t, http.MethodGet, "/api/auth/me", token, nil)
			if code != http.StatusUnauthorized || message(body) != tc.message {
				t.Fatalf("status %d, body %v", code, body)
			}
		})
	}
}

func TestAuthGateRejectsDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)

	adminAccess, _ := env.login(t, seedAdminEmail, seedAdminPassword)
	temp := env.createUser(t, adminAccess, "worker@mecone.com", "COORDINATOR")
	workerAccess, _ := env.login(t, "worker@mecone.com", temp)

	user, err := env.store.Users().FindByEmail(context.Background(), "worker@mecone.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if err := env.store.Users().Deactivate(context.Background(), user.ID, "admin"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	code, body := env.doJSON(t, http.MethodGet, "/api/auth/me", workerAccess, nil)
	if code != http.StatusUnauthorized || message(body) != "User not found or inactive" {
		t.Fatalf("status %d, body %v", code, body)
	}
}

func TestAuthGateRecordsAPIAccess(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.login(t, seedAdminEmail, seedAdminPassword)

	before := len(entriesByAction(env.sink, audit.ActionAPIAccess))
	if code, _ := env.doJSON(t, http.MethodGet, "/api/auth/me", access, nil); code != http.StatusOK {
		t.Fatalf("me: status %d", code)
	}
	after := len(entriesByAction(env.sink, audit.ActionAPIAccess))
	if after != before+1 {
		t.Fatalf("expected one new API_ACCESS entry, got %d -> %d", before, after)
	}
}

func TestAuthGateAPIAccessSuppressed(t *testing.T) {
	env := newTestEnv(t, auth.WithAPIAccessAudit(false))
	access, _ := env.login(t, seedAdminEmail, seedAdminPassword)

	if code, _ := env.doJSON(t, http.MethodGet, "/api/auth/me", access, nil); code != http.StatusOK {
		t.Fatalf("me: status %d", code)
	}
	if got := len(entriesByAction(env.sink, audit.ActionAPIAccess)); got != 0 {
		t.Fatalf("expected no API_ACCESS entries, got %d", got)
	}
}

func entriesByAction(sink *audit.MemStore, action audit.Action) []audit.Entry {
	var out []audit.Entry
	for _, e := range sink.Entries() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
