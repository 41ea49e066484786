package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"mecone.com/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users() UserStore           { return &userStore{db: s.db} }
func (s *PGStore) Sessions() SessionStore     { return &sessionStore{db: s.db} }
func (s *PGStore) WorkGroups() WorkGroupStore { return &workGroupStore{db: s.db} }

const uniqueViolation = "23505"

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, email, first_name, last_name, password_hash, role,
	is_active, temporary_password, must_change_password, last_login_at,
	created_at, updated_at, created_by, updated_by`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
		createdBy sql.NullString
		updatedBy sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.TemporaryPassword, &u.MustChangePassword, &lastLogin,
		&u.CreatedAt, &u.UpdatedAt, &createdBy, &updatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	u.CreatedBy = createdBy.String
	u.UpdatedBy = updatedBy.String
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, first_name, last_name, password_hash, role,
		   is_active, temporary_password, must_change_password, created_by)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,nullif($10,''))`,
		u.ID, NormalizeEmail(u.Email), u.FirstName, u.LastName, u.PasswordHash,
		u.Role, u.IsActive, u.TemporaryPassword, u.MustChangePassword, u.CreatedBy,
	)
	return mapConflict(err)
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, NormalizeEmail(email))
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set email=$2, first_name=$3, last_name=$4, role=$5,
		   is_active=$6, updated_at=now(), updated_by=nullif($7,'')
		 where id=$1`,
		u.ID, NormalizeEmail(u.Email), u.FirstName, u.LastName, u.Role,
		u.IsActive, u.UpdatedBy,
	)
	if err != nil {
		return mapConflict(err)
	}
	return requireRow(res)
}

func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string, temporary bool) error {
	// A temporary password always forces a change on next use.
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, temporary_password=$3,
		   must_change_password=$3, updated_at=now()
		 where id=$1`,
		userID, passwordHash, temporary,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$2 where id=$1`, userID, at)
	return err
}

func (s *userStore) Deactivate(ctx context.Context, userID, updatedBy string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set is_active=false, updated_at=now(), updated_by=nullif($2,'')
		 where id=$1`,
		userID, updatedBy,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Session store ------------------------------------------------------------

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, token, is_active, expires_at,
		   ip_address, user_agent)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		sess.ID, sess.UserID, sess.Token, sess.IsActive, sess.ExpiresAt,
		sess.IPAddress, sess.UserAgent,
	)
	return err
}

func (s *sessionStore) ActiveByToken(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token, is_active, expires_at, ip_address,
		   user_agent, created_at, last_used_at
		 from sessions where token=$1 and is_active=true`, token)
	var sess Session
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Token, &sess.IsActive, &sess.ExpiresAt,
		&sess.IPAddress, &sess.UserAgent, &sess.CreatedAt, &sess.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Deactivate(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set is_active=false where token=$1`, token)
	return err
}

func (s *sessionStore) Touch(ctx context.Context, token string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set last_used_at=$2 where token=$1`, token, at)
	return err
}

// Work group store ---------------------------------------------------------

type workGroupStore struct{ db *sql.DB }

func (s *workGroupStore) ListByUser(ctx context.Context, userID string) ([]WorkGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`select g.id, g.name from work_groups g
		 join user_work_groups ug on ug.work_group_id=g.id
		 where ug.user_id=$1 order by g.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []WorkGroup
	for rows.Next() {
		var g WorkGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
