package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mecone.com/internal/audit"
	"mecone.com/internal/ids"
	"mecone.com/internal/obs"
)

const usersTable = "users"

// Service composes the password codec, token service, session registry and
// audit recorder into the login/refresh/logout/forgot-password flows and the
// administrative user operations.
type Service struct {
	store  Store
	audit  *audit.Recorder
	tokens *TokenService
	now    func() time.Time

	auditAPIAccess bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithAPIAccessAudit toggles the per-request API_ACCESS trail. Defaults to
// on; deployments may switch it off to limit audit-log volume.
func WithAPIAccessAudit(enabled bool) ServiceOption {
	return func(s *Service) { s.auditAPIAccess = enabled }
}

// NewService constructs the auth Service.
func NewService(store Store, recorder *audit.Recorder, tokens *TokenService, opts ...ServiceOption) *Service {
	svc := &Service{
		store:          store,
		audit:          recorder,
		tokens:         tokens,
		now:            time.Now,
		auditAPIAccess: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Tokens TokenPair
	User   UserProjection
}

// Login verifies credentials and opens a session. Every credential failure
// maps to ErrInvalidCredentials so the response cannot reveal whether the
// email or the password was wrong.
func (s *Service) Login(ctx context.Context, email, password string, origin Origin) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		obs.ObserveLogin("denied")
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveLogin("denied")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	if !user.IsActive {
		obs.ObserveLogin("denied")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !VerifyPassword(user.PasswordHash, password) {
		obs.ObserveLogin("denied")
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssueTokenPair(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	// Session insert happens-before the audit write happens-before the
	// response: an audit row must never exist for a session that failed to
	// persist.
	session := &Session{
		ID:        ids.New(),
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		IsActive:  true,
		ExpiresAt: pair.RefreshExpiresAt,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return LoginResult{}, fmt.Errorf("login: persist session: %w", err)
	}

	now := s.now().UTC()
	if err := s.store.Users().SetLastLogin(ctx, user.ID, now); err != nil {
		obs.Error("set last login failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}
	user.LastLoginAt = &now

	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    user.ID,
		Action:    audit.ActionLogin,
		TableName: usersTable,
		RecordID:  user.ID,
		NewValues: map[string]any{"email": user.Email, "sessionId": session.ID},
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})

	obs.ObserveLogin("ok")
	return LoginResult{Tokens: pair, User: user.Project()}, nil
}

// Refresh exchanges a valid refresh token for a brand-new pair. The old
// session is rotated out: the new grant is persisted first, then the old one
// is retired, so a storage failure never strands the caller without a valid
// grant.
func (s *Service) Refresh(ctx context.Context, refreshToken string, origin Origin) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		obs.ObserveRefresh("denied")
		return TokenPair{}, ErrInvalidToken
	}

	session, err := s.store.Sessions().ActiveByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveRefresh("denied")
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	// The store checks only is_active; the record's own expiry is enforced
	// here in addition to the token's embedded one.
	if s.now().After(session.ExpiresAt) {
		obs.ObserveRefresh("denied")
		return TokenPair{}, ErrInvalidToken
	}
	if err := s.store.Sessions().Touch(ctx, refreshToken, s.now().UTC()); err != nil {
		obs.Error("touch session failed", map[string]any{"session_id": session.ID, "error": err.Error()})
	}

	user, err := s.store.Users().Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveRefresh("denied")
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	if !user.IsActive {
		obs.ObserveRefresh("denied")
		return TokenPair{}, ErrInvalidToken
	}

	pair, err := s.tokens.IssueTokenPair(user)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	next := &Session{
		ID:        ids.New(),
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		IsActive:  true,
		ExpiresAt: pair.RefreshExpiresAt,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	}
	if err := s.store.Sessions().Create(ctx, next); err != nil {
		return TokenPair{}, fmt.Errorf("refresh: persist session: %w", err)
	}
	if err := s.store.Sessions().Deactivate(ctx, refreshToken); err != nil {
		obs.Error("retire refreshed session failed", map[string]any{"session_id": session.ID, "error": err.Error()})
	}

	obs.ObserveRefresh("ok")
	return pair, nil
}

// Logout retires the named session. Idempotent: succeeds whether or not the
// refresh token maps to a live session.
func (s *Service) Logout(ctx context.Context, actorID, refreshToken string, origin Origin) error {
	if strings.TrimSpace(refreshToken) != "" {
		if err := s.store.Sessions().Deactivate(ctx, refreshToken); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}
	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    actorID,
		Action:    audit.ActionLogout,
		TableName: usersTable,
		RecordID:  actorID,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
	return nil
}

// ForgotPassword resets the account to a temporary password. An unknown
// email is not an error: the caller responds with the same generic message
// either way, and the generated password is empty. The temporary password is
// returned for dispatch through an external notification channel.
func (s *Service) ForgotPassword(ctx context.Context, email string, origin Origin) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("forgot password: %w", err)
	}

	temp, err := GenerateTemporaryPassword()
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	hash, err := HashPassword(temp)
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash, true); err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}

	if err := s.audit.Record(ctx, audit.Entry{
		UserID:    user.ID,
		Action:    audit.ActionPasswordReset,
		TableName: usersTable,
		RecordID:  user.ID,
		NewValues: map[string]any{
			"temporaryPassword":  temp,
			"mustChangePassword": true,
		},
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	}); err != nil {
		obs.Error("password reset audit failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}
	return temp, nil
}

// Authenticate resolves an access token into a principal, rejecting stale
// tokens and vanished or deactivated users.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.store.Users().Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUserInactive
		}
		return Principal{}, fmt.Errorf("authenticate: %w", err)
	}
	if !user.IsActive {
		return Principal{}, ErrUserInactive
	}
	return Principal{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// RecordAPIAccess writes the per-request access trail for an authenticated
// caller. Best-effort and default-on; disabled via WithAPIAccessAudit.
func (s *Service) RecordAPIAccess(ctx context.Context, principal Principal, origin Origin) {
	if !s.auditAPIAccess {
		return
	}
	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    principal.UserID,
		Action:    audit.ActionAPIAccess,
		TableName: usersTable,
		RecordID:  principal.UserID,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
}

// CurrentUser returns the caller's own projection, including work groups.
func (s *Service) CurrentUser(ctx context.Context, userID string) (UserProjection, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return UserProjection{}, err
	}
	groups, err := s.store.WorkGroups().ListByUser(ctx, userID)
	if err != nil {
		return UserProjection{}, fmt.Errorf("current user: %w", err)
	}
	projection := user.Project()
	projection.WorkGroups = groups
	return projection, nil
}
