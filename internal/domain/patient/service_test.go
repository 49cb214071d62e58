package patient

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/healthgraph/radar/internal/domain/issue"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	patients   map[int64]*Patient
	nextID     int64
	openIssues map[int64]int
	records    *mockRecordRepo
}

func newMockPatientRepo(records *mockRecordRepo) *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient), openIssues: make(map[int64]int), records: records}
}

// unique mimics the unique indexes on patient_id and cpf.
func (m *mockPatientRepo) unique(p *Patient) error {
	for _, o := range m.patients {
		if o.ID != p.ID && (o.PatientID == p.PatientID || o.CPF == p.CPF) {
			return apperr.Conflict("patient already exists")
		}
	}
	return nil
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if err := m.unique(p); err != nil {
		return err
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFound("patient not found")
	}
	if err := m.unique(p); err != nil {
		return err
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) summaries(keep func(*Patient) bool) []*Summary {
	var out []*Summary
	for _, p := range m.patients {
		if keep(p) {
			cp := *p
			out = append(out, &Summary{Patient: &cp, TotalRecords: len(m.records.byPatient[p.ID]), OpenIssues: m.openIssues[p.ID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matches(p *Patient, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(p.CPF, q) || strings.Contains(strings.ToLower(p.PatientID), q)
}

func (m *mockPatientRepo) List(_ context.Context, search string, limit, offset int) ([]*Summary, int, error) {
	all := m.summaries(func(p *Patient) bool { return search == "" || matches(p, search) })
	return pagination.Slice(all, pagination.Params{Page: offset/limit + 1, PerPage: limit}), len(all), nil
}

func (m *mockPatientRepo) Search(_ context.Context, f SearchFilter, limit int) ([]*Summary, error) {
	all := m.summaries(func(p *Patient) bool {
		if f.Query != "" && !matches(p, f.Query) {
			return false
		}
		if f.Department != "" {
			found := false
			for _, r := range m.records.byPatient[p.ID] {
				if r.Department != nil && strings.EqualFold(*r.Department, f.Department) {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		if f.HasIssues != nil && (m.openIssues[p.ID] > 0) != *f.HasIssues {
			return false
		}
		return true
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type mockRecordRepo struct {
	byPatient map[int64][]*MedicalRecord
	nextID    int64
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{byPatient: make(map[int64][]*MedicalRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *MedicalRecord) error {
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = r.RecordDate
	m.byPatient[r.PatientID] = append(m.byPatient[r.PatientID], r)
	return nil
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID int64) ([]*MedicalRecord, error) {
	out := append([]*MedicalRecord(nil), m.byPatient[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RecordDate.After(out[j].RecordDate) })
	return out, nil
}

// fakeIssues serves a fixed set of issues.
type fakeIssues struct {
	issues []*issue.Issue
	names  map[int64]string
}

func (f *fakeIssues) ForPatient(_ context.Context, patientID int64) ([]*issue.Issue, error) {
	var out []*issue.Issue
	for _, iss := range f.issues {
		if iss.PatientID != nil && *iss.PatientID == patientID {
			out = append(out, iss)
		}
	}
	return out, nil
}

func (f *fakeIssues) OpenForPatient(ctx context.Context, patientID int64) ([]issue.View, error) {
	all, _ := f.ForPatient(ctx, patientID)
	var views []issue.View
	for _, iss := range all {
		if iss.Status != issue.StatusOpen {
			continue
		}
		views = append(views, issue.View{Issue: iss, SystemName: f.names[iss.SystemID]})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return issue.PriorityRank[views[i].Priority] < issue.PriorityRank[views[j].Priority]
	})
	return views, nil
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	patients *mockPatientRepo
	records  *mockRecordRepo
	issues   *fakeIssues
}

func newFixture() *fixture {
	records := newMockRecordRepo()
	patients := newMockPatientRepo(records)
	issues := &fakeIssues{names: map[int64]string{1: "HIS Principal", 2: "LIS"}}
	svc := NewService(patients, records, issues, db.NoTx{})
	svc.SetClock(func() time.Time { return fixedNow })
	return &fixture{svc: svc, patients: patients, records: records, issues: issues}
}

func strp(s string) *string { return &s }

func validPatient() *Patient {
	return &Patient{
		PatientID: "PAC00001",
		Name:      "Ana Silva",
		CPF:       "52998224725",
		BirthDate: NewDate(time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC)),
		Gender:    GenderFemale,
		Phone:     strp("(11) 98765-4321"),
		Email:     strp("ana.silva@example.com"),
	}
}

func (f *fixture) addIssue(patientID int64, status issue.Status, prio issue.Priority, typ issue.Type, detectedAgo time.Duration) *issue.Issue {
	pid := patientID
	detected := fixedNow.Add(-detectedAgo)
	iss := &issue.Issue{
		ID: int64(len(f.issues.issues) + 1), PatientID: &pid, SystemID: 1,
		IssueType: typ, Priority: prio, Title: string(typ), Status: status, DetectedAt: &detected,
	}
	f.issues.issues = append(f.issues.issues, iss)
	if status == issue.StatusOpen {
		f.patients.openIssues[patientID]++
	}
	return iss
}

func TestService_Create_Normalizes(t *testing.T) {
	f := newFixture()
	p := validPatient()
	p.Address = strp("   ")
	if err := f.svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := f.patients.patients[p.ID]
	if stored.CPF != "529.982.247-25" {
		t.Errorf("expected formatted cpf, got %q", stored.CPF)
	}
	if stored.Phone == nil || *stored.Phone != "+5511987654321" {
		t.Errorf("expected E.164 phone, got %v", stored.Phone)
	}
	if stored.Address != nil {
		t.Errorf("expected blank address to be dropped, got %q", *stored.Address)
	}
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Patient)
	}{
		{"missing patient_id", func(p *Patient) { p.PatientID = " " }},
		{"long patient_id", func(p *Patient) { p.PatientID = strings.Repeat("X", 21) }},
		{"missing name", func(p *Patient) { p.Name = "" }},
		{"long name", func(p *Patient) { p.Name = strings.Repeat("Ana ", 26) }},
		{"long email", func(p *Patient) { p.Email = strp(strings.Repeat("a", 90) + "@example.com") }},
		{"bad cpf", func(p *Patient) { p.CPF = "123.456.789-00" }},
		{"missing birth date", func(p *Patient) { p.BirthDate = Date{} }},
		{"future birth date", func(p *Patient) { p.BirthDate = NewDate(fixedNow.AddDate(0, 0, 2)) }},
		{"bad gender", func(p *Patient) { p.Gender = "X" }},
		{"bad phone", func(p *Patient) { p.Phone = strp("12") }},
		{"bad email", func(p *Patient) { p.Email = strp("not-an-email") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := validPatient()
			tt.mutate(p)
			if err := f.svc.Create(context.Background(), p); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(f.patients.patients) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestService_Create_Duplicate(t *testing.T) {
	f := newFixture()
	if err := f.svc.Create(context.Background(), validPatient()); err != nil {
		t.Fatal(err)
	}

	sameCPF := validPatient()
	sameCPF.PatientID = "PAC00002"
	sameCPF.CPF = "529.982.247-25"
	if err := f.svc.Create(context.Background(), sameCPF); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for duplicate cpf, got %v", err)
	}
	sameID := validPatient()
	sameID.CPF = "111.444.777-35"
	if err := f.svc.Create(context.Background(), sameID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for duplicate patient_id, got %v", err)
	}
	if len(f.patients.patients) != 1 {
		t.Errorf("expected a single stored patient, got %d", len(f.patients.patients))
	}
}

func TestService_Update(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)

	upd := validPatient()
	upd.ID = p.ID
	upd.Name = "Ana Souza"
	if err := f.svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.patients.patients[p.ID].Name != "Ana Souza" {
		t.Errorf("expected updated name")
	}

	upd.ID = 99
	if err := f.svc.Update(context.Background(), upd); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_List_Completeness(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)
	for i := 0; i < 3; i++ {
		f.addIssue(p.ID, issue.StatusOpen, issue.PriorityLow, issue.TypeFormat, time.Hour)
	}
	f.addIssue(p.ID, issue.StatusResolved, issue.PriorityLow, issue.TypeFormat, time.Hour)

	items, meta, err := f.svc.List(context.Background(), "ana", pagination.New(1, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Total != 1 || items[0].OpenIssues != 3 || items[0].CompletenessPercentage != 70 {
		t.Errorf("unexpected listing %+v (meta %+v)", items[0], meta)
	}

	for i := 0; i < 10; i++ {
		f.addIssue(p.ID, issue.StatusOpen, issue.PriorityLow, issue.TypeFormat, time.Hour)
	}
	items, _, _ = f.svc.List(context.Background(), "", pagination.New(1, 20))
	if items[0].CompletenessPercentage != 0 {
		t.Errorf("expected completeness floored at 0, got %d", items[0].CompletenessPercentage)
	}
}

func TestService_Details(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)
	f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: p.ID, RecordType: RecordExam, SystemSource: "LIS", RecordDate: fixedNow.Add(-48 * time.Hour)})
	f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: p.ID, RecordType: RecordConsultation, SystemSource: "HIS", RecordDate: fixedNow.Add(-24 * time.Hour)})
	f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: p.ID, RecordType: RecordExam, SystemSource: "LIS", RecordDate: fixedNow.Add(-time.Hour)})
	f.addIssue(p.ID, issue.StatusOpen, issue.PriorityHigh, issue.TypeDuplicate, time.Hour)
	f.addIssue(p.ID, issue.StatusOpen, issue.PriorityLow, issue.TypeMissing, time.Hour)

	d, err := f.svc.Details(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	qi := d.QualityIndicators
	if qi.Completeness != 90 || qi.Consistency != 84 || qi.TotalRecords != 3 || qi.OpenIssues != 2 {
		t.Errorf("unexpected indicators %+v", qi)
	}
	if len(d.DataFragments) != 2 || d.DataFragments[0] != "HIS" {
		t.Errorf("unexpected fragments %v", d.DataFragments)
	}
	if !d.SystemsLastUpdate["LIS"].Equal(fixedNow.Add(-time.Hour)) {
		t.Errorf("expected latest LIS update, got %v", d.SystemsLastUpdate["LIS"])
	}

	if _, err := f.svc.Details(context.Background(), 42); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Timeline(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)
	dept := "Cardiology"
	f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: p.ID, RecordType: RecordConsultation, Department: &dept, SystemSource: "HIS", RecordDate: fixedNow.Add(-3 * time.Hour)})
	f.addIssue(p.ID, issue.StatusOpen, issue.PriorityHigh, issue.TypeDuplicate, time.Hour)
	undated := f.addIssue(p.ID, issue.StatusOpen, issue.PriorityLow, issue.TypeMissing, 0)
	undated.DetectedAt = nil

	tl, err := f.svc.Timeline(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tl.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(tl.Events))
	}
	if tl.Events[0].Type != EventQualityIssue || tl.Events[1].Type != EventMedicalRecord || tl.Events[2].Date != nil {
		t.Errorf("unexpected order %+v", tl.Events)
	}
	if tl.Events[1].Title != "Consultation - Cardiology" || tl.Events[1].ID != "record_1" {
		t.Errorf("unexpected record event %+v", tl.Events[1])
	}
}

func TestService_Recommendations(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)
	f.addIssue(p.ID, issue.StatusOpen, issue.PriorityLow, issue.TypeFormat, time.Hour)
	f.addIssue(p.ID, issue.StatusOpen, issue.PriorityHigh, issue.TypeDuplicate, time.Hour)
	f.addIssue(p.ID, issue.StatusResolved, issue.PriorityHigh, issue.TypeMissing, time.Hour)

	recs, err := f.svc.Recommendations(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].Priority != issue.PriorityHigh || recs[0].EstimatedTime != "30 minutes" || recs[0].SystemInvolved != "HIS Principal" {
		t.Errorf("unexpected first recommendation %+v", recs[0])
	}
	if recs[1].Impact != "complementary information" || recs[1].Title != "Resolve format" {
		t.Errorf("unexpected second recommendation %+v", recs[1])
	}
}

func TestService_Search(t *testing.T) {
	f := newFixture()
	a := validPatient()
	f.svc.Create(context.Background(), a)
	b := validPatient()
	b.PatientID, b.Name, b.CPF = "PAC00002", "Carlos Santos", "111.444.777-35"
	f.svc.Create(context.Background(), b)
	dept := "Radiology"
	f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: b.ID, RecordType: RecordExam, Department: &dept, SystemSource: "PACS"})
	f.addIssue(a.ID, issue.StatusOpen, issue.PriorityHigh, issue.TypeDuplicate, time.Hour)

	yes, no := true, false
	tests := []struct {
		name string
		f    SearchFilter
		want []int64
	}{
		{"by cpf fragment", SearchFilter{Query: "444.777"}, []int64{b.ID}},
		{"by department", SearchFilter{Department: "radiology"}, []int64{b.ID}},
		{"with open issues", SearchFilter{HasIssues: &yes}, []int64{a.ID}},
		{"without open issues", SearchFilter{HasIssues: &no}, []int64{b.ID}},
		{"everything", SearchFilter{}, []int64{a.ID, b.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Search(context.Background(), tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestService_AddRecord(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)

	m := &MedicalRecord{PatientID: p.ID, RecordType: RecordPrescription, SystemSource: " Pharmacy "}
	if err := f.svc.AddRecord(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.SystemSource != "Pharmacy" || !m.RecordDate.Equal(fixedNow) {
		t.Errorf("unexpected record %+v", m)
	}

	if err := f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: p.ID, RecordType: "xray", SystemSource: "PACS"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: p.ID, RecordType: RecordExam}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for missing source, got %v", err)
	}
	if err := f.svc.AddRecord(context.Background(), &MedicalRecord{PatientID: 77, RecordType: RecordExam, SystemSource: "LIS"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for unknown patient, got %v", err)
	}
}

func TestService_AddRecord_FieldLengths(t *testing.T) {
	f := newFixture()
	p := validPatient()
	f.svc.Create(context.Background(), p)

	long := strings.Repeat("x", 101)
	tests := []*MedicalRecord{
		{PatientID: p.ID, RecordType: RecordExam, SystemSource: strings.Repeat("s", 51)},
		{PatientID: p.ID, RecordType: RecordExam, SystemSource: "LIS", DoctorName: &long},
		{PatientID: p.ID, RecordType: RecordExam, SystemSource: "LIS", Department: &long},
	}
	for _, m := range tests {
		if err := f.svc.AddRecord(context.Background(), m); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("expected validation error for %+v, got %v", m, err)
		}
	}
	if len(f.records.byPatient[p.ID]) != 0 {
		t.Error("no record should be stored")
	}

	dept := strings.Repeat("ã", 100)
	ok := &MedicalRecord{PatientID: p.ID, RecordType: RecordExam, SystemSource: "LIS", Department: &dept}
	if err := f.svc.AddRecord(context.Background(), ok); err != nil {
		t.Errorf("expected a 100 character department to be accepted, got %v", err)
	}
}
