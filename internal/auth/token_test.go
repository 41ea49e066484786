package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var (
	testAccessSecret  = []byte("test-access-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testAccessSecret, testRefreshSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func testUser() *User {
	return &User{
		ID:       "user-1",
		Email:    "manager@mecone.com",
		Role:     RoleManager,
		IsActive: true,
	}
}

func TestTokenServiceRequiresDistinctSecrets(t *testing.T) {
	if _, err := NewTokenService([]byte("same"), []byte("same")); err == nil {
		t.Fatal("expected error for identical secrets")
	}
	if _, err := NewTokenService(nil, []byte("refresh")); err == nil {
		t.Fatal("expected error for missing access secret")
	}
}

func TestIssueAndVerifyTokenPair(t *testing.T) {
	svc := newTestTokenService(t)

	pair, err := svc.IssueTokenPair(testUser())
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatalf("refresh expiry %v must outlive access expiry %v",
			pair.RefreshExpiresAt, pair.AccessExpiresAt)
	}

	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "manager@mecone.com" || claims.Role != RoleManager {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	refreshClaims, err := svc.VerifyRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if refreshClaims.UserID != claims.UserID || refreshClaims.Role != claims.Role {
		t.Fatalf("refresh claims diverge from access claims: %+v vs %+v", refreshClaims, claims)
	}
}

func TestTokenFamiliesAreNotInterchangeable(t *testing.T) {
	svc := newTestTokenService(t)

	pair, err := svc.IssueTokenPair(testUser())
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	if _, err := svc.VerifyRefreshToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
	if _, err := svc.VerifyAccessToken(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
}

func TestExpiredTokenFailsVerification(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuing := newTestTokenService(t, WithClock(func() time.Time { return past }))

	pair, err := issuing.IssueTokenPair(testUser())
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	// Same secrets, real clock: the 15-minute access token issued two days
	// ago is stale.
	verifying := newTestTokenService(t)
	if _, err := verifying.VerifyAccessToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired access token to fail: %v", err)
	}

	// The refresh token outlives the access token; push the clock past its
	// 7-day window.
	late := newTestTokenService(t, WithClock(func() time.Time {
		return past.Add(8 * 24 * time.Hour)
	}))
	if _, err := late.VerifyRefreshToken(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired refresh token to fail: %v", err)
	}
}

func TestTamperedTokenFailsVerification(t *testing.T) {
	svc := newTestTokenService(t)

	pair, err := svc.IssueTokenPair(testUser())
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	parts := strings.Split(pair.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", pair.AccessToken)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := svc.VerifyAccessToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token verified: %v", err)
	}

	if _, err := svc.VerifyAccessToken(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token verified: %v", err)
	}
	if _, err := svc.VerifyAccessToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("malformed token verified: %v", err)
	}
}
