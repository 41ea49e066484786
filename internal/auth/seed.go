package auth

import (
	"context"
	"errors"
	"fmt"

	"mecone.com/internal/audit"
	"mecone.com/internal/obs"
)

// EnsureSeedAdmin creates the bootstrap administrator when no account with
// the given email exists. Idempotent across restarts. The seed account is
// created by no one: its creator back-reference stays empty.
func (s *Service) EnsureSeedAdmin(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: seed admin email and password are required", ErrInvalidInput)
	}

	if _, err := s.store.Users().FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	admin := &User{
		Email:        email,
		FirstName:    "System",
		LastName:     "Administrator",
		PasswordHash: hash,
		Role:         RoleAdministrator,
		IsActive:     true,
	}
	if err := s.store.Users().Create(ctx, admin); err != nil {
		// Lost the race against a concurrent boot; the account exists.
		if errors.Is(err, ErrConflict) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}

	s.audit.RecordBestEffort(ctx, audit.Entry{
		Action:    audit.ActionCreate,
		TableName: usersTable,
		RecordID:  admin.ID,
		NewValues: snapshot(admin),
	})
	obs.Info("seed administrator created", map[string]any{"email": email})
	return nil
}
