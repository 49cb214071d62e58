package patient

import (
	"context"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/domain/issue"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

// IssueSource is the slice of the issue service the patient views need.
type IssueSource interface {
	ForPatient(ctx context.Context, patientID int64) ([]*issue.Issue, error)
	OpenForPatient(ctx context.Context, patientID int64) ([]issue.View, error)
}

type Service struct {
	patients Repository
	records  RecordRepository
	issues   IssueSource
	tx       db.TxRunner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(patients Repository, records RecordRepository, issues IssueSource, tx db.TxRunner) *Service {
	return &Service{
		patients: patients,
		records:  records,
		issues:   issues,
		tx:       tx,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Quality scores derived from the number of open issues.
func listingCompleteness(open int) int { return max(0, 100-10*open) }
func detailCompleteness(open int) int  { return max(0, 100-5*open) }
func detailConsistency(open int) int   { return max(0, 100-8*open) }

func optional(p **string) {
	if *p == nil {
		return
	}
	v := strings.TrimSpace(**p)
	if v == "" {
		*p = nil
		return
	}
	*p = &v
}

// Column widths of the patients and medical_records tables.
const (
	maxPatientIDLen = 20
	maxNameLen      = 100
	maxEmailLen     = 100
	maxPhoneLen     = 20
	maxSourceLen    = 50
)

func checkLen(v, name string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return apperr.Validation("%s must be at most %d characters", name, limit)
	}
	return nil
}

func checkOptionalLen(v *string, name string, limit int) error {
	if v == nil {
		return nil
	}
	return checkLen(*v, name, limit)
}

func (s *Service) validate(p *Patient) error {
	p.PatientID = strings.TrimSpace(p.PatientID)
	p.Name = strings.TrimSpace(p.Name)
	optional(&p.Phone)
	optional(&p.Email)
	optional(&p.Address)

	if p.PatientID == "" {
		return apperr.Validation("patient_id is required")
	}
	if err := checkLen(p.PatientID, "patient_id", maxPatientIDLen); err != nil {
		return err
	}
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if err := checkLen(p.Name, "name", maxNameLen); err != nil {
		return err
	}
	cpf, ok := NormalizeCPF(p.CPF)
	if !ok {
		return apperr.Validation("invalid cpf")
	}
	p.CPF = cpf
	if p.BirthDate.IsZero() {
		return apperr.Validation("birth_date is required")
	}
	if p.BirthDate.After(s.now()) {
		return apperr.Validation("birth_date cannot be in the future")
	}
	p.BirthDate = NewDate(p.BirthDate.Time)
	if !p.Gender.Valid() {
		return apperr.Validation("gender must be M, F or O")
	}
	if p.Phone != nil {
		phone, ok := NormalizePhone(*p.Phone)
		if !ok {
			return apperr.Validation("invalid phone number")
		}
		if err := checkLen(phone, "phone", maxPhoneLen); err != nil {
			return err
		}
		p.Phone = &phone
	}
	if p.Email != nil {
		if err := checkLen(*p.Email, "email", maxEmailLen); err != nil {
			return err
		}
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return apperr.Validation("invalid email")
		}
	}
	return nil
}

// Create registers a patient. A duplicate patient_id or CPF is a conflict and
// nothing is stored.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.patients.Create(ctx, p)
	})
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return s.patients.Update(ctx, p)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func fillSummaries(items []*Summary) []*Summary {
	if items == nil {
		return []*Summary{}
	}
	for _, it := range items {
		it.CompletenessPercentage = listingCompleteness(it.OpenIssues)
		it.LastUpdate = it.UpdatedAt
	}
	return items
}

func (s *Service) List(ctx context.Context, search string, p pagination.Params) ([]*Summary, *pagination.Meta, error) {
	items, total, err := s.patients.List(ctx, strings.TrimSpace(search), p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	return fillSummaries(items), pagination.NewMeta(p, total), nil
}

// Search returns at most SearchLimit patients matching f.
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]*Summary, error) {
	f.Query = strings.TrimSpace(f.Query)
	f.Department = strings.TrimSpace(f.Department)
	items, err := s.patients.Search(ctx, f, SearchLimit)
	if err != nil {
		return nil, err
	}
	return fillSummaries(items), nil
}

func (s *Service) load(ctx context.Context, id int64) (*Patient, []*MedicalRecord, []*issue.Issue, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	records, err := s.records.ListByPatient(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	issues, err := s.issues.ForPatient(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, records, issues, nil
}

// Details returns the patient with records, issues, quality indicators and
// where the patient's data lives.
func (s *Service) Details(ctx context.Context, id int64) (*Details, error) {
	p, records, issues, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	open := 0
	for _, iss := range issues {
		if iss.Status == issue.StatusOpen {
			open++
		}
	}

	lastUpdate := make(map[string]time.Time)
	for _, r := range records {
		if t, ok := lastUpdate[r.SystemSource]; !ok || r.CreatedAt.After(t) {
			lastUpdate[r.SystemSource] = r.CreatedAt
		}
	}
	fragments := make([]string, 0, len(lastUpdate))
	for sys := range lastUpdate {
		fragments = append(fragments, sys)
	}
	sort.Strings(fragments)

	if records == nil {
		records = []*MedicalRecord{}
	}
	if issues == nil {
		issues = []*issue.Issue{}
	}
	return &Details{
		Patient:        p,
		MedicalRecords: records,
		QualityIssues:  issues,
		QualityIndicators: QualityIndicators{
			Completeness: detailCompleteness(open),
			Consistency:  detailConsistency(open),
			TotalRecords: len(records),
			OpenIssues:   open,
		},
		SystemsLastUpdate: lastUpdate,
		DataFragments:     fragments,
	}, nil
}

func recordTitle(r *MedicalRecord) string {
	dept := "unspecified department"
	if r.Department != nil {
		dept = *r.Department
	}
	t := string(r.RecordType)
	if t != "" {
		t = strings.ToUpper(t[:1]) + t[1:]
	}
	return t + " - " + dept
}

// Timeline merges records and issues, newest first. Issues without a
// detection time go last.
func (s *Service) Timeline(ctx context.Context, id int64) (*Timeline, error) {
	p, records, issues, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	events := make([]TimelineEvent, 0, len(records)+len(issues))
	for _, r := range records {
		date := r.RecordDate
		events = append(events, TimelineEvent{
			ID:           "record_" + strconv.FormatInt(r.ID, 10),
			Type:         EventMedicalRecord,
			Date:         &date,
			Title:        recordTitle(r),
			Description:  r.Description,
			Doctor:       r.DoctorName,
			SystemSource: r.SystemSource,
			Category:     r.RecordType,
		})
	}
	for _, iss := range issues {
		events = append(events, TimelineEvent{
			ID:          "issue_" + strconv.FormatInt(iss.ID, 10),
			Type:        EventQualityIssue,
			Date:        iss.DetectedAt,
			Title:       iss.Title,
			Description: iss.Description,
			Priority:    iss.Priority,
			Status:      iss.Status,
			IssueType:   iss.IssueType,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Date, events[j].Date
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})

	return &Timeline{PatientID: p.ID, PatientName: p.Name, Events: events}, nil
}

func impactOf(p issue.Priority) string {
	switch p {
	case issue.PriorityHigh:
		return "high risk of medical error"
	case issue.PriorityMedium:
		return "moderate impact on data quality"
	}
	return "complementary information"
}

func effortOf(t issue.Type) string {
	switch t {
	case issue.TypeDuplicate:
		return "30 minutes"
	case issue.TypeFormat:
		return "15 minutes"
	}
	return "45 minutes"
}

// Recommendations turns the patient's open issues into suggested actions,
// most urgent first.
func (s *Service) Recommendations(ctx context.Context, id int64) ([]Recommendation, error) {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return nil, err
	}
	open, err := s.issues.OpenForPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	recs := make([]Recommendation, 0, len(open))
	for _, v := range open {
		recs = append(recs, Recommendation{
			IssueID:        v.ID,
			Priority:       v.Priority,
			Title:          "Resolve " + v.Title,
			Description:    v.Description,
			Impact:         impactOf(v.Priority),
			EstimatedTime:  effortOf(v.IssueType),
			ActionType:     v.IssueType,
			SystemInvolved: v.SystemName,
		})
	}
	return recs, nil
}

// AddRecord appends a medical record to a patient's history.
func (s *Service) AddRecord(ctx context.Context, m *MedicalRecord) error {
	m.SystemSource = strings.TrimSpace(m.SystemSource)
	optional(&m.DoctorName)
	optional(&m.Department)
	if !m.RecordType.Valid() {
		return apperr.Validation("invalid record_type %q", m.RecordType)
	}
	if m.SystemSource == "" {
		return apperr.Validation("system_source is required")
	}
	if err := checkLen(m.SystemSource, "system_source", maxSourceLen); err != nil {
		return err
	}
	if err := checkOptionalLen(m.DoctorName, "doctor_name", maxNameLen); err != nil {
		return err
	}
	if err := checkOptionalLen(m.Department, "department", maxNameLen); err != nil {
		return err
	}
	if m.RecordDate.IsZero() {
		m.RecordDate = s.now().UTC()
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, m.PatientID); err != nil {
			return err
		}
		return s.records.Create(ctx, m)
	})
}

func (s *Service) Records(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	records, err := s.records.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*MedicalRecord{}
	}
	return records, nil
}
