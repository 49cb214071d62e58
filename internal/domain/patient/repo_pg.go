package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthgraph/radar/internal/platform/db"
)

// -- Patient --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientColumns = `p.id, p.patient_id, p.name, p.cpf, p.birth_date, p.gender, p.phone, p.email, p.address, p.created_at, p.updated_at`

// Per-patient counts used by listings and search.
const summaryColumns = patientColumns + `,
	(SELECT COUNT(*) FROM medical_records r WHERE r.patient_id = p.id),
	(SELECT COUNT(*) FROM data_quality_issues i WHERE i.patient_id = p.id AND i.status = 'open')`

func patientDest(p *Patient) []interface{} {
	return []interface{}{
		&p.ID, &p.PatientID, &p.Name, &p.CPF, &p.BirthDate.Time, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.CreatedAt, &p.UpdatedAt,
	}
}

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(patientDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) scanSummary(row pgx.Row) (*Summary, error) {
	s := &Summary{Patient: &Patient{}}
	dest := append(patientDest(s.Patient), &s.TotalRecords, &s.OpenIssues)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (patient_id, name, cpf, birth_date, gender, phone, email, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		p.PatientID, p.Name, p.CPF, p.BirthDate.Time, p.Gender, p.Phone, p.Email, p.Address,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err, "patient")
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET patient_id = $2, name = $3, cpf = $4, birth_date = $5, gender = $6,
			phone = $7, email = $8, address = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.Name, p.CPF, p.BirthDate.Time, p.Gender, p.Phone, p.Email, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err, "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientColumns+` FROM patients p WHERE p.id = $1`, id))
	return p, db.TranslateError(err, "patient")
}

func (r *patientRepoPG) querySummaries(ctx context.Context, sql string, args ...interface{}) ([]*Summary, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "patient")
	}
	defer rows.Close()

	var items []*Summary
	for rows.Next() {
		s, err := r.scanSummary(rows)
		if err != nil {
			return nil, db.TranslateError(err, "patient")
		}
		items = append(items, s)
	}
	return items, db.TranslateError(rows.Err(), "patient")
}

// textMatch is a case-insensitive substring match on name, cpf and patient_id.
func textMatch(idx int) string {
	return fmt.Sprintf("(p.name ILIKE $%[1]d OR p.cpf ILIKE $%[1]d OR p.patient_id ILIKE $%[1]d)", idx)
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func (r *patientRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Summary, int, error) {
	where := ""
	var args []interface{}
	if search != "" {
		args = append(args, likePattern(search))
		where = " WHERE " + textMatch(1)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients p`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "patient")
	}

	query := fmt.Sprintf(`SELECT %s FROM patients p%s ORDER BY p.id LIMIT $%d OFFSET $%d`,
		summaryColumns, where, len(args)+1, len(args)+2)
	items, err := r.querySummaries(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *patientRepoPG) Search(ctx context.Context, f SearchFilter, limit int) ([]*Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM patients p WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Query != "" {
		query += " AND " + textMatch(idx)
		args = append(args, likePattern(f.Query))
		idx++
	}
	if f.Department != "" {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM medical_records r
			WHERE r.patient_id = p.id AND LOWER(r.department) = LOWER($%d))`, idx)
		args = append(args, f.Department)
		idx++
	}
	if f.HasIssues != nil {
		exists := `EXISTS (SELECT 1 FROM data_quality_issues i WHERE i.patient_id = p.id AND i.status = 'open')`
		if *f.HasIssues {
			query += " AND " + exists
		} else {
			query += " AND NOT " + exists
		}
	}

	query += fmt.Sprintf(" ORDER BY p.id LIMIT $%d", idx)
	args = append(args, limit)
	return r.querySummaries(ctx, query, args...)
}

// -- MedicalRecord --

type recordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordColumns = `id, patient_id, record_type, description, doctor_name, department, system_source, record_date, created_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.RecordType, &m.Description, &m.DoctorName, &m.Department,
		&m.SystemSource, &m.RecordDate, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (patient_id, record_type, description, doctor_name, department, system_source, record_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		m.PatientID, m.RecordType, m.Description, m.DoctorName, m.Department, m.SystemSource, m.RecordDate,
	).Scan(&m.ID, &m.CreatedAt)
	return db.TranslateError(err, "medical record")
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordColumns+` FROM medical_records
		WHERE patient_id = $1 ORDER BY record_date DESC, id DESC`, patientID)
	if err != nil {
		return nil, db.TranslateError(err, "medical record")
	}
	defer rows.Close()

	var items []*MedicalRecord
	for rows.Next() {
		m, err := r.scanRecord(rows)
		if err != nil {
			return nil, db.TranslateError(err, "medical record")
		}
		items = append(items, m)
	}
	return items, db.TranslateError(rows.Err(), "medical record")
}
