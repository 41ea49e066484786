package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// Absence is reported as ErrNotFound, never raised as an exceptional
// condition; callers treat "not found" as ordinary control flow.
type Store interface {
	Users() UserStore
	Sessions() SessionStore
	WorkGroups() WorkGroupStore
}

// UserStore manages identity records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	// UpdatePassword stores a new hash. When temporary is true the record's
	// temporary-password and must-change-password flags are both set.
	UpdatePassword(ctx context.Context, userID, passwordHash string, temporary bool) error
	SetLastLogin(ctx context.Context, userID string, at time.Time) error
	Deactivate(ctx context.Context, userID, updatedBy string) error
}

// SessionStore manages persisted refresh-token grants.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	// ActiveByToken returns the session only if is_active is set. The stored
	// expiry is deliberately not compared here; the refresh flow enforces it
	// separately.
	ActiveByToken(ctx context.Context, token string) (*Session, error)
	// Deactivate is idempotent: unknown or already-inactive tokens are a
	// no-op, not an error.
	Deactivate(ctx context.Context, token string) error
	Touch(ctx context.Context, token string, at time.Time) error
}

// WorkGroupStore exposes the read-only work-group membership lookup used by
// the current-user projection.
type WorkGroupStore interface {
	ListByUser(ctx context.Context, userID string) ([]WorkGroup, error)
}
