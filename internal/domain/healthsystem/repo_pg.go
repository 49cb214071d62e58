package healthsystem

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthgraph/radar/internal/platform/db"
)

type systemRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &systemRepoPG{pool: pool}
}

func (r *systemRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const systemColumns = `id, name, system_type, status, last_sync, sync_frequency, description, created_at`

func (r *systemRepoPG) scanSystem(row pgx.Row) (*HealthSystem, error) {
	var s HealthSystem
	err := row.Scan(&s.ID, &s.Name, &s.SystemType, &s.Status, &s.LastSync, &s.SyncFrequency, &s.Description, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *systemRepoPG) Create(ctx context.Context, s *HealthSystem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_systems (name, system_type, status, last_sync, sync_frequency, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		s.Name, s.SystemType, s.Status, s.LastSync, s.SyncFrequency, s.Description,
	).Scan(&s.ID, &s.CreatedAt)
	return db.TranslateError(err, "health system")
}

func (r *systemRepoPG) GetByID(ctx context.Context, id int64) (*HealthSystem, error) {
	s, err := r.scanSystem(r.conn(ctx).QueryRow(ctx, `SELECT `+systemColumns+` FROM health_systems WHERE id = $1`, id))
	return s, db.TranslateError(err, "health system")
}

func (r *systemRepoPG) GetForUpdate(ctx context.Context, id int64) (*HealthSystem, error) {
	s, err := r.scanSystem(r.conn(ctx).QueryRow(ctx, `SELECT `+systemColumns+` FROM health_systems WHERE id = $1 FOR UPDATE`, id))
	return s, db.TranslateError(err, "health system")
}

func (r *systemRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*HealthSystem, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "health system")
	}
	defer rows.Close()

	var items []*HealthSystem
	for rows.Next() {
		s, err := r.scanSystem(rows)
		if err != nil {
			return nil, db.TranslateError(err, "health system")
		}
		items = append(items, s)
	}
	return items, db.TranslateError(rows.Err(), "health system")
}

func (r *systemRepoPG) List(ctx context.Context) ([]*HealthSystem, error) {
	return r.query(ctx, `SELECT `+systemColumns+` FROM health_systems ORDER BY name, id`)
}

func (r *systemRepoPG) RecentlySynced(ctx context.Context, limit int) ([]*HealthSystem, error) {
	return r.query(ctx, `SELECT `+systemColumns+` FROM health_systems
		WHERE last_sync IS NOT NULL ORDER BY last_sync DESC, id DESC LIMIT $1`, limit)
}

func (r *systemRepoPG) UpdateStatus(ctx context.Context, id int64, status Status, lastSync *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE health_systems SET status = $2, last_sync = COALESCE($3, last_sync) WHERE id = $1`,
		id, status, lastSync)
	if err != nil {
		return db.TranslateError(err, "health system")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, "health system")
	}
	return nil
}

func (r *systemRepoPG) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var c StatusCounts
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'online'),
			COUNT(*) FILTER (WHERE status = 'warning'),
			COUNT(*) FILTER (WHERE status = 'offline')
		FROM health_systems`).Scan(&c.Total, &c.Online, &c.Warning, &c.Offline)
	return c, db.TranslateError(err, "health system")
}
