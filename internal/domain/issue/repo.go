package issue

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, iss *Issue) error
	GetByID(ctx context.Context, id int64) (*Row, error)
	// GetForUpdate locks the issue row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Issue, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Row, int, error)
	// ListByPatient returns all of a patient's issues, optionally restricted
	// to one status, in listing order.
	ListByPatient(ctx context.Context, patientID int64, status Status) ([]*Row, error)
	Similar(ctx context.Context, iss *Issue, limit int) ([]*Issue, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	Resolve(ctx context.Context, id int64, resolvedAt time.Time, minutes int, notes *string) error
	Stats(ctx context.Context, since time.Time) (*Stats, error)
	History(ctx context.Context, limit, offset int) ([]*Row, int, error)
}
