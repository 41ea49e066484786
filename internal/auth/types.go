package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of back-office profiles governing authorization.
type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleManager       Role = "MANAGER"
	RoleCoordinator   Role = "COORDINATOR"
	RoleNegotiator    Role = "NEGOTIATOR"
	RoleLawyer        Role = "LAWYER"
	RoleController    Role = "CONTROLLER"
)

var allRoles = []Role{
	RoleAdministrator,
	RoleManager,
	RoleCoordinator,
	RoleNegotiator,
	RoleLawyer,
	RoleController,
}

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown profile %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// User is an identity record. "Deletion" is an IsActive=false transition;
// rows are never physically removed.
type User struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       string
	Role               Role
	IsActive           bool
	TemporaryPassword  bool
	MustChangePassword bool
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	// Weak references: identifiers only, resolved by lookup. The seed
	// administrator is created by no one, so empty is a legal value.
	CreatedBy string
	UpdatedBy string
}

// Session is a persisted refresh-token grant. Valid for authentication only
// while IsActive and ExpiresAt is in the future. Deactivated on logout,
// never removed, so the history stays auditable.
type Session struct {
	ID         string
	UserID     string
	Token      string
	IsActive   bool
	ExpiresAt  time.Time
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// WorkGroup is the minimal projection needed by the current-user endpoint.
type WorkGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Origin carries request metadata recorded alongside sessions and audit rows.
type Origin struct {
	IPAddress string
	UserAgent string
}

// Principal is the resolved identity attached to an authenticated request.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// UserProjection is the password-stripped view returned to clients. The role
// travels as "profile" on the wire.
type UserProjection struct {
	ID                 string      `json:"id"`
	Email              string      `json:"email"`
	FirstName          string      `json:"firstName"`
	LastName           string      `json:"lastName"`
	Profile            Role        `json:"profile"`
	IsActive           bool        `json:"isActive"`
	MustChangePassword bool        `json:"mustChangePassword"`
	LastLoginAt        *time.Time  `json:"lastLoginAt,omitempty"`
	WorkGroups         []WorkGroup `json:"workGroups,omitempty"`
}

// Project builds the safe client view of a user.
func (u *User) Project() UserProjection {
	return UserProjection{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Profile:            u.Role,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		LastLoginAt:        u.LastLoginAt,
	}
}

// NormalizeEmail lower-cases and trims an email for case-insensitive
// comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
