package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mecone.com/internal/audit"
)

// CreateUserInput is the administrative create request.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
	Role      Role
}

// UpdateUserInput carries the mutable administrative fields. Nil pointers
// leave the current value untouched.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Role      *Role
	IsActive  *bool
}

func (in CreateUserInput) validate() error {
	if NormalizeEmail(in.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("%w: firstName is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("%w: lastName is required", ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return fmt.Errorf("%w: unknown profile %q", ErrInvalidInput, in.Role)
	}
	return nil
}

// CreateUser provisions an account with a system-generated temporary
// password, which is returned for out-of-band delivery. Email uniqueness is
// enforced; duplicates surface as ErrConflict.
func (s *Service) CreateUser(ctx context.Context, actorID string, in CreateUserInput, origin Origin) (UserProjection, string, error) {
	if err := in.validate(); err != nil {
		return UserProjection{}, "", err
	}
	email := NormalizeEmail(in.Email)
	if _, err := s.store.Users().FindByEmail(ctx, email); err == nil {
		return UserProjection{}, "", fmt.Errorf("%w: user with email %s", ErrConflict, email)
	} else if !errors.Is(err, ErrNotFound) {
		return UserProjection{}, "", fmt.Errorf("create user: %w", err)
	}

	temp, err := GenerateTemporaryPassword()
	if err != nil {
		return UserProjection{}, "", fmt.Errorf("create user: %w", err)
	}
	hash, err := HashPassword(temp)
	if err != nil {
		return UserProjection{}, "", fmt.Errorf("create user: %w", err)
	}

	user := &User{
		Email:              email,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		PasswordHash:       hash,
		Role:               in.Role,
		IsActive:           true,
		TemporaryPassword:  true,
		MustChangePassword: true,
		CreatedBy:          actorID,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return UserProjection{}, "", fmt.Errorf("%w: user with email %s", ErrConflict, email)
		}
		return UserProjection{}, "", fmt.Errorf("create user: %w", err)
	}

	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    actorID,
		Action:    audit.ActionCreate,
		TableName: usersTable,
		RecordID:  user.ID,
		NewValues: snapshot(user),
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
	return user.Project(), temp, nil
}

// UpdateUser applies administrative changes, re-checking email uniqueness
// when the address moves.
func (s *Service) UpdateUser(ctx context.Context, actorID, userID string, in UpdateUserInput, origin Origin) (UserProjection, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return UserProjection{}, err
	}
	before := snapshot(user)

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" {
			return UserProjection{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
		}
		if email != user.Email {
			if other, err := s.store.Users().FindByEmail(ctx, email); err == nil && other.ID != user.ID {
				return UserProjection{}, fmt.Errorf("%w: user with email %s", ErrConflict, email)
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return UserProjection{}, fmt.Errorf("update user: %w", err)
			}
			user.Email = email
		}
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return UserProjection{}, fmt.Errorf("%w: firstName is required", ErrInvalidInput)
		}
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if strings.TrimSpace(*in.LastName) == "" {
			return UserProjection{}, fmt.Errorf("%w: lastName is required", ErrInvalidInput)
		}
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return UserProjection{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidInput, *in.Role)
		}
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	user.UpdatedBy = actorID

	if err := s.store.Users().Update(ctx, user); err != nil {
		return UserProjection{}, err
	}

	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    actorID,
		Action:    audit.ActionUpdate,
		TableName: usersTable,
		RecordID:  user.ID,
		OldValues: before,
		NewValues: snapshot(user),
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
	return user.Project(), nil
}

// DeactivateUser performs the soft delete. The row survives for history.
func (s *Service) DeactivateUser(ctx context.Context, actorID, userID string, origin Origin) error {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.Users().Deactivate(ctx, userID, actorID); err != nil {
		return err
	}

	after := snapshot(user)
	after["isActive"] = false
	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    actorID,
		Action:    audit.ActionDelete,
		TableName: usersTable,
		RecordID:  userID,
		OldValues: snapshot(user),
		NewValues: after,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
	return nil
}

// ResetPassword issues a fresh temporary password on behalf of an
// administrator and returns it for out-of-band delivery.
func (s *Service) ResetPassword(ctx context.Context, actorID, userID string, origin Origin) (string, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return "", err
	}

	temp, err := GenerateTemporaryPassword()
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	hash, err := HashPassword(temp)
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash, true); err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}

	s.audit.RecordBestEffort(ctx, audit.Entry{
		UserID:    actorID,
		Action:    audit.ActionPasswordReset,
		TableName: usersTable,
		RecordID:  user.ID,
		NewValues: map[string]any{
			"temporaryPassword":  temp,
			"mustChangePassword": true,
		},
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
	return temp, nil
}

// ListUsers returns every account, active or not.
func (s *Service) ListUsers(ctx context.Context) ([]UserProjection, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]UserProjection, 0, len(users))
	for _, u := range users {
		out = append(out, u.Project())
	}
	return out, nil
}

// GetUser returns one account by id.
func (s *Service) GetUser(ctx context.Context, userID string) (UserProjection, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return UserProjection{}, err
	}
	return user.Project(), nil
}

// snapshot captures the auditable view of a user. The password hash is
// included under its well-known key and relies on the recorder's central
// redaction.
func snapshot(u *User) map[string]any {
	return map[string]any{
		"email":              u.Email,
		"firstName":          u.FirstName,
		"lastName":           u.LastName,
		"profile":            string(u.Role),
		"isActive":           u.IsActive,
		"temporaryPassword":  u.TemporaryPassword,
		"mustChangePassword": u.MustChangePassword,
		"passwordHash":       u.PasswordHash,
	}
}
