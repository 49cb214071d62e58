package healthsystem

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s *HealthSystem) error
	GetByID(ctx context.Context, id int64) (*HealthSystem, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*HealthSystem, error)
	List(ctx context.Context) ([]*HealthSystem, error)
	UpdateStatus(ctx context.Context, id int64, status Status, lastSync *time.Time) error
	CountByStatus(ctx context.Context) (StatusCounts, error)
	RecentlySynced(ctx context.Context, limit int) ([]*HealthSystem, error)
}
