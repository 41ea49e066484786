package auth

import (
	"context"
	"sync"
	"time"

	"mecone.com/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-process Store used by tests and by local development
// runs without a configured database. Not intended for production.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]*User    // by id
	sessions map[string]*Session // by token
	groups   map[string][]WorkGroup
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
		groups:   make(map[string][]WorkGroup),
	}
}

func (m *MemStore) Users() UserStore           { return (*memUserStore)(m) }
func (m *MemStore) Sessions() SessionStore     { return (*memSessionStore)(m) }
func (m *MemStore) WorkGroups() WorkGroupStore { return (*memWorkGroupStore)(m) }

// SetWorkGroups assigns group memberships for a user (test/dev helper).
func (m *MemStore) SetWorkGroups(userID string, groups []WorkGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[userID] = groups
}

type memUserStore MemStore

func (m *memUserStore) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := NormalizeEmail(u.Email)
	for _, existing := range m.users {
		if NormalizeEmail(existing.Email) == email {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = email
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	clone := *u
	m.users[u.ID] = &clone
	return nil
}

func (m *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = NormalizeEmail(email)
	for _, u := range m.users {
		if NormalizeEmail(u.Email) == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserStore) List(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memUserStore) Update(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	email := NormalizeEmail(u.Email)
	for id, existing := range m.users {
		if id != u.ID && NormalizeEmail(existing.Email) == email {
			return ErrConflict
		}
	}
	clone := *u
	clone.Email = email
	clone.CreatedAt = current.CreatedAt
	clone.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = &clone
	return nil
}

func (m *memUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string, temporary bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.TemporaryPassword = temporary
	u.MustChangePassword = temporary
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUserStore) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	t := at
	u.LastLoginAt = &t
	return nil
}

func (m *memUserStore) Deactivate(ctx context.Context, userID, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = false
	u.UpdatedBy = updatedBy
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type memSessionStore MemStore

func (m *memSessionStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = ids.New()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.LastUsedAt = now
	clone := *s
	m.sessions[s.Token] = &clone
	return nil
}

func (m *memSessionStore) ActiveByToken(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok || !s.IsActive {
		return nil, ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *memSessionStore) Deactivate(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		s.IsActive = false
	}
	return nil
}

func (m *memSessionStore) Touch(ctx context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		s.LastUsedAt = at
	}
	return nil
}

type memWorkGroupStore MemStore

func (m *memWorkGroupStore) ListByUser(ctx context.Context, userID string) ([]WorkGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups := m.groups[userID]
	out := make([]WorkGroup, len(groups))
	copy(out, groups)
	return out, nil
}
