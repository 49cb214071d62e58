package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	List(ctx context.Context, search string, limit, offset int) ([]*Summary, int, error)
	Search(ctx context.Context, f SearchFilter, limit int) ([]*Summary, error)
}

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	// ListByPatient returns records newest first by record date.
	ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error)
}
