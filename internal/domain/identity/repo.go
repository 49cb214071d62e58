package identity

import (
	"context"
	"time"
)

type UserRepository interface {
	// Create fails with a conflict naming the duplicated field.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	// Extend moves the expiry of an active session.
	Extend(ctx context.Context, token string, expiresAt time.Time) error
	// Deactivate revokes an active session and reports whether one was found.
	Deactivate(ctx context.Context, token string) (bool, error)
}
