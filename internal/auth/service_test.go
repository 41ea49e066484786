package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"mecone.com/internal/audit"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemStore, *audit.MemStore) {
	t.Helper()
	store := NewMemStore()
	sink := audit.NewMemStore()
	svc := NewService(store, audit.NewRecorder(sink), newTestTokenService(t), opts...)
	return svc, store, sink
}

func seedUser(t *testing.T, store *MemStore, email, password string, role Role, active bool) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
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

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, store, sink := newTestService(t)
	seedUser(t, store, "known@mecone.com", "right-pass", RoleManager, true)
	seedUser(t, store, "inactive@mecone.com", "right-pass", RoleManager, false)

	cases := []struct {
		name            string
		email, password string
	}{
		{"unknown email", "nobody@mecone.com", "right-pass"},
		{"wrong password", "known@mecone.com", "wrong-pass"},
		{"inactive user", "inactive@mecone.com", "right-pass"},
		{"empty password", "known@mecone.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.email, tc.password, Origin{})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
	if got := len(entriesByAction(sink, audit.ActionLogin)); got != 0 {
		t.Fatalf("failed logins must not be audited as LOGIN, found %d entries", got)
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, store, sink := newTestService(t)
	user := seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	origin := Origin{IPAddress: "10.0.0.1", UserAgent: "test-agent"}
	result, err := svc.Login(context.Background(), "Manager@Mecone.com", "s3cret", origin)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if result.User.Email != "manager@mecone.com" || result.User.Profile != RoleManager {
		t.Fatalf("unexpected projection: %+v", result.User)
	}
	if result.User.LastLoginAt == nil {
		t.Fatal("expected lastLoginAt to be stamped")
	}

	session, err := store.Sessions().ActiveByToken(context.Background(), result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("expected an active session for the refresh token: %v", err)
	}
	if session.UserID != user.ID || session.IPAddress != "10.0.0.1" || session.UserAgent != "test-agent" {
		t.Fatalf("unexpected session: %+v", session)
	}

	logins := entriesByAction(sink, audit.ActionLogin)
	if len(logins) != 1 {
		t.Fatalf("expected exactly one LOGIN entry, got %d", len(logins))
	}
	entry := logins[0]
	if entry.UserID != user.ID || entry.RecordID != user.ID || entry.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected LOGIN entry: %+v", entry)
	}
	for key := range entry.NewValues {
		if key == "password" || key == "passwordHash" {
			t.Fatalf("LOGIN entry must not carry credential keys: %+v", entry.NewValues)
		}
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	result, err := svc.Login(context.Background(), "manager@mecone.com", "s3cret", Origin{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	oldToken := result.Tokens.RefreshToken

	pair, err := svc.Refresh(context.Background(), oldToken, Origin{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == oldToken {
		t.Fatal("refresh must issue a new refresh token")
	}

	// The old grant is retired; reusing it fails.
	if _, err := svc.Refresh(context.Background(), oldToken, Origin{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rotated-out token to be rejected, got %v", err)
	}
	// The new grant works.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken, Origin{}); err != nil {
		t.Fatalf("refreshed token should be usable: %v", err)
	}
}

func TestRefreshRejectsRevokedSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	result, err := svc.Login(context.Background(), "manager@mecone.com", "s3cret", Origin{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), result.User.ID, result.Tokens.RefreshToken, Origin{}); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The JWT itself is still well-formed and unexpired; only the session
	// registry knows it was revoked.
	if _, err := svc.Refresh(context.Background(), result.Tokens.RefreshToken, Origin{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked session to be rejected, got %v", err)
	}
}

func TestRefreshRejectsExpiredSessionRecord(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	result, err := svc.Login(context.Background(), "manager@mecone.com", "s3cret", Origin{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Same service, clock pushed past the stored expiry. The token signature
	// is verified with the real clock, so only the record check trips.
	late := NewService(store, audit.NewRecorder(audit.NewMemStore()), newTestTokenService(t),
		WithServiceClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }),
	)
	if _, err := late.Refresh(context.Background(), result.Tokens.RefreshToken, Origin{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected stale session record to be rejected, got %v", err)
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	svc, store, _ := newTestService(t)
	user := seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	result, err := svc.Login(context.Background(), "manager@mecone.com", "s3cret", Origin{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := store.Users().Deactivate(context.Background(), user.ID, "admin-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), result.Tokens.RefreshToken, Origin{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh for deactivated user to fail, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, store, sink := newTestService(t)
	user := seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	result, err := svc.Login(context.Background(), "manager@mecone.com", "s3cret", Origin{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.Logout(context.Background(), user.ID, result.Tokens.RefreshToken, Origin{}); err != nil {
			t.Fatalf("Logout attempt %d: %v", i+1, err)
		}
	}
	// Unknown token is equally fine.
	if err := svc.Logout(context.Background(), user.ID, "never-issued", Origin{}); err != nil {
		t.Fatalf("Logout with unknown token: %v", err)
	}

	if _, err := store.Sessions().ActiveByToken(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to be retired, got %v", err)
	}
	if got := len(entriesByAction(sink, audit.ActionLogout)); got != 3 {
		t.Fatalf("expected 3 LOGOUT entries, got %d", got)
	}
}

func TestForgotPasswordKnownEmail(t *testing.T) {
	svc, store, sink := newTestService(t)
	user := seedUser(t, store, "manager@mecone.com", "old-pass", RoleManager, true)

	temp, err := svc.ForgotPassword(context.Background(), "manager@mecone.com", Origin{})
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if temp == "" {
		t.Fatal("expected a temporary password for a known email")
	}

	updated, err := store.Users().Find(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !updated.MustChangePassword || !updated.TemporaryPassword {
		t.Fatalf("expected the change-password flags to be set: %+v", updated)
	}
	if VerifyPassword(updated.PasswordHash, "old-pass") {
		t.Fatal("old password must stop working")
	}
	if !VerifyPassword(updated.PasswordHash, temp) {
		t.Fatal("temporary password must verify against the stored hash")
	}

	resets := entriesByAction(sink, audit.ActionPasswordReset)
	if len(resets) != 1 {
		t.Fatalf("expected one PASSWORD_RESET entry, got %d", len(resets))
	}
	if got := resets[0].NewValues["temporaryPassword"]; got != "[REDACTED]" {
		t.Fatalf("temporary password must be redacted in the audit trail, got %v", got)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, sink := newTestService(t)

	temp, err := svc.ForgotPassword(context.Background(), "nobody@mecone.com", Origin{})
	if err != nil {
		t.Fatalf("unknown email must not be an error: %v", err)
	}
	if temp != "" {
		t.Fatalf("unknown email must not yield a password, got %q", temp)
	}
	if got := len(sink.Entries()); got != 0 {
		t.Fatalf("unknown email must leave no audit trace, found %d entries", got)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, store, _ := newTestService(t)
	user := seedUser(t, store, "manager@mecone.com", "s3cret", RoleManager, true)

	result, err := svc.Login(context.Background(), "manager@mecone.com", "s3cret", Origin{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	principal, err := svc.Authenticate(context.Background(), result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.UserID != user.ID || principal.Role != RoleManager {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	if _, err := svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// A still-valid token stops working once the account is deactivated.
	if err := store.Users().Deactivate(context.Background(), user.ID, "admin-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), result.Tokens.AccessToken); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "taken@mecone.com", "pass", RoleManager, true)

	_, _, err := svc.CreateUser(context.Background(), "admin-1", CreateUserInput{
		Email:     "Taken@Mecone.com",
		FirstName: "Dup",
		LastName:  "User",
		Role:      RoleCoordinator,
	}, Origin{})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateUserIssuesTemporaryPassword(t *testing.T) {
	svc, _, sink := newTestService(t)

	projection, temp, err := svc.CreateUser(context.Background(), "admin-1", CreateUserInput{
		Email:     "new@mecone.com",
		FirstName: "New",
		LastName:  "Hire",
		Role:      RoleNegotiator,
	}, Origin{})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if temp == "" {
		t.Fatal("expected a temporary password")
	}
	if !projection.MustChangePassword {
		t.Fatalf("new accounts must be flagged for password change: %+v", projection)
	}

	// The fresh credentials log in.
	if _, err := svc.Login(context.Background(), "new@mecone.com", temp, Origin{}); err != nil {
		t.Fatalf("login with temporary password: %v", err)
	}

	creates := entriesByAction(sink, audit.ActionCreate)
	if len(creates) != 1 {
		t.Fatalf("expected one CREATE entry, got %d", len(creates))
	}
	if got := creates[0].NewValues["passwordHash"]; got != "[REDACTED]" {
		t.Fatalf("password hash must be redacted in the audit trail, got %v", got)
	}
}

func TestEnsureSeedAdminIsIdempotent(t *testing.T) {
	svc, store, sink := newTestService(t)

	for i := 0; i < 2; i++ {
		if err := svc.EnsureSeedAdmin(context.Background(), "admin@mecone.com", "admin123"); err != nil {
			t.Fatalf("EnsureSeedAdmin attempt %d: %v", i+1, err)
		}
	}

	users, err := store.Users().List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected exactly one seeded account, got %d", len(users))
	}
	if users[0].Role != RoleAdministrator || users[0].CreatedBy != "" {
		t.Fatalf("unexpected seed account: %+v", users[0])
	}
	if got := len(entriesByAction(sink, audit.ActionCreate)); got != 1 {
		t.Fatalf("expected one CREATE entry for the seed, got %d", got)
	}

	if _, err := svc.Login(context.Background(), "admin@mecone.com", "admin123", Origin{}); err != nil {
		t.Fatalf("seed admin login: %v", err)
	}
}
