package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthgraph/radar/internal/platform/db"
)

type metricRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &metricRepoPG{pool: pool}
}

func (r *metricRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const observationColumns = `id, metric_name, metric_value, metric_unit, department, calculated_at`

func (r *metricRepoPG) scanObservation(row pgx.Row) (*Observation, error) {
	var o Observation
	if err := row.Scan(&o.ID, &o.MetricName, &o.MetricValue, &o.MetricUnit, &o.Department, &o.CalculatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *metricRepoPG) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients),
			(SELECT COUNT(*) FROM health_systems),
			(SELECT COUNT(*) FILTER (WHERE status = 'offline') FROM health_systems),
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status = 'open' AND priority = 'high'),
			COUNT(*) FILTER (WHERE status = 'open' AND issue_type = 'duplicate'),
			COUNT(*) FILTER (WHERE status = 'open' AND issue_type = 'missing')
		FROM data_quality_issues`,
	).Scan(&c.TotalPatients, &c.TotalSystems, &c.OfflineSystems,
		&c.OpenIssues, &c.HighPriority, &c.OpenDuplicates, &c.OpenMissing)
	if err != nil {
		return nil, db.TranslateError(err, "dashboard metrics")
	}
	return &c, nil
}

func (r *metricRepoPG) Latest(ctx context.Context, name string) (*Observation, error) {
	o, err := r.scanObservation(r.conn(ctx).QueryRow(ctx, `
		SELECT `+observationColumns+` FROM dashboard_metrics
		WHERE metric_name = $1 ORDER BY calculated_at DESC, id DESC LIMIT 1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, db.TranslateError(err, "metric observation")
}

func (r *metricRepoPG) CreateObservation(ctx context.Context, o *Observation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dashboard_metrics (metric_name, metric_value, metric_unit, department, calculated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		o.MetricName, o.MetricValue, o.MetricUnit, o.Department, o.CalculatedAt,
	).Scan(&o.ID)
	return db.TranslateError(err, "metric observation")
}

func (r *metricRepoPG) ListObservations(ctx context.Context, f ObservationFilter, limit, offset int) ([]*Observation, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	idx := 1
	if f.MetricName != "" {
		where += fmt.Sprintf(" AND metric_name = $%d", idx)
		args = append(args, f.MetricName)
		idx++
	}
	if f.Department != "" {
		where += fmt.Sprintf(" AND LOWER(department) = LOWER($%d)", idx)
		args = append(args, f.Department)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM dashboard_metrics`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "metric observation")
	}

	query := `SELECT ` + observationColumns + ` FROM dashboard_metrics` + where +
		fmt.Sprintf(" ORDER BY calculated_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.TranslateError(err, "metric observation")
	}
	defer rows.Close()

	var items []*Observation
	for rows.Next() {
		o, err := r.scanObservation(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "metric observation")
		}
		items = append(items, o)
	}
	return items, total, db.TranslateError(rows.Err(), "metric observation")
}
