package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/pkg/apperr"
)

// -- Users --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, department, is_active, last_login, created_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.Department, &u.IsActive, &u.LastLogin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// uniqueField names the column behind a unique violation on users.
func uniqueField(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return ""
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return "username"
	case "users_email_key":
		return "email"
	}
	return ""
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, role, department, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Department, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
	if field := uniqueField(err); field != "" {
		return apperr.Wrap(apperr.KindConflict, err, field+" already exists")
	}
	return db.TranslateError(err, "user")
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, db.TranslateError(err, "user")
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	return u, db.TranslateError(err, "user")
}

func (r *userRepoPG) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return db.TranslateError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, "user")
	}
	return nil
}

// -- Sessions --

type sessionRepoPG struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

func (r *sessionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_sessions (user_id, session_token, ip_address, user_agent, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at`,
		s.UserID, s.Token, s.IPAddress, s.UserAgent, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err == nil {
		s.IsActive = true
	}
	return db.TranslateError(err, "session")
}

func (r *sessionRepoPG) GetByToken(ctx context.Context, token string) (*Session, error) {
	var s Session
	var ip, ua *string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_id, session_token, ip_address, user_agent, expires_at, is_active, created_at
		FROM user_sessions WHERE session_token = $1`, token,
	).Scan(&s.ID, &s.UserID, &s.Token, &ip, &ua, &s.ExpiresAt, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "session")
	}
	if ip != nil {
		s.IPAddress = *ip
	}
	if ua != nil {
		s.UserAgent = *ua
	}
	return &s, nil
}

func (r *sessionRepoPG) Extend(ctx context.Context, token string, expiresAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE user_sessions SET expires_at = $2 WHERE session_token = $1 AND is_active`, token, expiresAt)
	if err != nil {
		return db.TranslateError(err, "session")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, "session")
	}
	return nil
}

func (r *sessionRepoPG) Deactivate(ctx context.Context, token string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE user_sessions SET is_active = FALSE WHERE session_token = $1 AND is_active`, token)
	if err != nil {
		return false, db.TranslateError(err, "session")
	}
	return tag.RowsAffected() > 0, nil
}
