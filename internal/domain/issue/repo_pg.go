package issue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthgraph/radar/internal/platform/db"
)

type issueRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &issueRepoPG{pool: pool}
}

func (r *issueRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const issueColumns = `i.id, i.patient_id, i.system_id, i.issue_type, i.priority, i.title, i.description,
	i.status, i.detected_at, i.resolved_at, i.resolution_time, i.resolution_notes`

const rowColumns = issueColumns + `, s.name, s.system_type, p.name, p.patient_id`

const rowFrom = ` FROM data_quality_issues i
	LEFT JOIN health_systems s ON s.id = i.system_id
	LEFT JOIN patients p ON p.id = i.patient_id`

func issueDest(iss *Issue) []interface{} {
	return []interface{}{
		&iss.ID, &iss.PatientID, &iss.SystemID, &iss.IssueType, &iss.Priority, &iss.Title, &iss.Description,
		&iss.Status, &iss.DetectedAt, &iss.ResolvedAt, &iss.ResolutionTime, &iss.ResolutionNotes,
	}
}

func (r *issueRepoPG) scanIssue(row pgx.Row) (*Issue, error) {
	var iss Issue
	if err := row.Scan(issueDest(&iss)...); err != nil {
		return nil, err
	}
	return &iss, nil
}

func (r *issueRepoPG) scanRow(row pgx.Row) (*Row, error) {
	var ir Row
	dest := append(issueDest(&ir.Issue), &ir.SystemName, &ir.SystemType, &ir.PatientName, &ir.PatientCode)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &ir, nil
}

func (r *issueRepoPG) Create(ctx context.Context, iss *Issue) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO data_quality_issues (patient_id, system_id, issue_type, priority, title, description, status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		iss.PatientID, iss.SystemID, iss.IssueType, iss.Priority, iss.Title, iss.Description, iss.Status, iss.DetectedAt,
	).Scan(&iss.ID)
	return db.TranslateError(err, "issue")
}

func (r *issueRepoPG) GetByID(ctx context.Context, id int64) (*Row, error) {
	ir, err := r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+rowColumns+rowFrom+` WHERE i.id = $1`, id))
	return ir, db.TranslateError(err, "issue")
}

func (r *issueRepoPG) GetForUpdate(ctx context.Context, id int64) (*Issue, error) {
	iss, err := r.scanIssue(r.conn(ctx).QueryRow(ctx,
		`SELECT `+issueColumns+` FROM data_quality_issues i WHERE i.id = $1 FOR UPDATE`, id))
	return iss, db.TranslateError(err, "issue")
}

func (r *issueRepoPG) queryRows(ctx context.Context, sql string, args ...interface{}) ([]*Row, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "issue")
	}
	defer rows.Close()

	var items []*Row
	for rows.Next() {
		ir, err := r.scanRow(rows)
		if err != nil {
			return nil, db.TranslateError(err, "issue")
		}
		items = append(items, ir)
	}
	return items, db.TranslateError(rows.Err(), "issue")
}

func (r *issueRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Row, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("i.status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("i.priority = $%d", f.Priority)
	}
	if f.Type != "" {
		add("i.issue_type = $%d", f.Type)
	}
	if f.PatientID != 0 {
		add("i.patient_id = $%d", f.PatientID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM data_quality_issues i`+clause, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "issue")
	}

	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s, i.detected_at DESC NULLS LAST, i.id DESC LIMIT $%d OFFSET $%d`,
		rowColumns, rowFrom, clause, priorityOrderSQL("i.priority"), len(args)+1, len(args)+2)
	items, err := r.queryRows(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *issueRepoPG) ListByPatient(ctx context.Context, patientID int64, status Status) ([]*Row, error) {
	return r.queryRows(ctx, fmt.Sprintf(`SELECT %s%s
		WHERE i.patient_id = $1 AND ($2::text = '' OR i.status = $2::text)
		ORDER BY %s, i.detected_at DESC NULLS LAST, i.id DESC`,
		rowColumns, rowFrom, priorityOrderSQL("i.priority")), patientID, string(status))
}

func (r *issueRepoPG) Similar(ctx context.Context, iss *Issue, limit int) ([]*Issue, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+issueColumns+` FROM data_quality_issues i
		WHERE i.issue_type = $1 AND i.id <> $2 AND i.status = 'open'
		ORDER BY i.detected_at DESC NULLS LAST, i.id DESC LIMIT $3`,
		iss.IssueType, iss.ID, limit)
	if err != nil {
		return nil, db.TranslateError(err, "issue")
	}
	defer rows.Close()

	var items []*Issue
	for rows.Next() {
		s, err := r.scanIssue(rows)
		if err != nil {
			return nil, db.TranslateError(err, "issue")
		}
		items = append(items, s)
	}
	return items, db.TranslateError(rows.Err(), "issue")
}

func (r *issueRepoPG) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE data_quality_issues SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return db.TranslateError(err, "issue")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, "issue")
	}
	return nil
}

func (r *issueRepoPG) Resolve(ctx context.Context, id int64, resolvedAt time.Time, minutes int, notes *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE data_quality_issues
		SET status = 'resolved', resolved_at = $2, resolution_time = $3, resolution_notes = $4
		WHERE id = $1`,
		id, resolvedAt, minutes, notes)
	if err != nil {
		return db.TranslateError(err, "issue")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, "issue")
	}
	return nil
}

func (r *issueRepoPG) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	st := &Stats{ByPriority: map[Priority]int{}, ByType: map[Type]int{}}
	q := r.conn(ctx)

	err := q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status = 'resolved' AND resolved_at >= $1),
			COUNT(*) FILTER (WHERE detected_at >= $1),
			AVG(resolution_time) FILTER (WHERE status = 'resolved')
		FROM data_quality_issues`, since,
	).Scan(&st.Open, &st.ResolvedSince, &st.DetectedSince, &st.AvgResolutionMinutes)
	if err != nil {
		return nil, db.TranslateError(err, "issue")
	}

	rows, err := q.Query(ctx, `
		SELECT 'priority', priority, COUNT(*) FROM data_quality_issues WHERE status = 'open' GROUP BY priority
		UNION ALL
		SELECT 'type', issue_type, COUNT(*) FROM data_quality_issues WHERE status = 'open' GROUP BY issue_type`)
	if err != nil {
		return nil, db.TranslateError(err, "issue")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dim, key string
			n        int
		)
		if err := rows.Scan(&dim, &key, &n); err != nil {
			return nil, db.TranslateError(err, "issue")
		}
		if dim == "priority" {
			st.ByPriority[Priority(key)] = n
		} else {
			st.ByType[Type(key)] = n
		}
	}
	return st, db.TranslateError(rows.Err(), "issue")
}

func (r *issueRepoPG) History(ctx context.Context, limit, offset int) ([]*Row, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM data_quality_issues WHERE status = 'resolved'`).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "issue")
	}
	items, err := r.queryRows(ctx, `SELECT `+rowColumns+rowFrom+`
		WHERE i.status = 'resolved'
		ORDER BY i.resolved_at DESC, i.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
