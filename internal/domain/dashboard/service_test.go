package dashboard

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/healthgraph/radar/internal/domain/healthsystem"
	"github.com/healthgraph/radar/internal/domain/issue"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

// -- Mocks --

type mockRepo struct {
	counts       Counts
	observations []*Observation
	nextID       int64
}

func (m *mockRepo) Counts(_ context.Context) (*Counts, error) {
	c := m.counts
	return &c, nil
}

func (m *mockRepo) Latest(_ context.Context, name string) (*Observation, error) {
	var latest *Observation
	for _, o := range m.observations {
		if o.MetricName == name && (latest == nil || o.CalculatedAt.After(latest.CalculatedAt)) {
			latest = o
		}
	}
	return latest, nil
}

func (m *mockRepo) CreateObservation(_ context.Context, o *Observation) error {
	m.nextID++
	o.ID = m.nextID
	cp := *o
	m.observations = append(m.observations, &cp)
	return nil
}

func (m *mockRepo) ListObservations(_ context.Context, f ObservationFilter, limit, offset int) ([]*Observation, int, error) {
	var out []*Observation
	for _, o := range m.observations {
		if f.MetricName != "" && o.MetricName != f.MetricName {
			continue
		}
		if f.Department != "" && (o.Department == nil || !strings.EqualFold(*o.Department, f.Department)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalculatedAt.After(out[j].CalculatedAt) })
	return pagination.Slice(out, pagination.Params{Page: offset/limit + 1, PerPage: limit}), len(out), nil
}

type fakeIssues struct {
	views []issue.View
	got   issue.Filter
	page  pagination.Params
}

func (f *fakeIssues) List(_ context.Context, flt issue.Filter, p pagination.Params) ([]issue.View, *pagination.Meta, error) {
	f.got, f.page = flt, p
	return f.views, pagination.NewMeta(p, len(f.views)), nil
}

type fakeSystems struct {
	views []healthsystem.SystemView
}

func (f *fakeSystems) List(_ context.Context) ([]healthsystem.SystemView, error) {
	return f.views, nil
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *fakeIssues, *fakeSystems) {
	repo := &mockRepo{}
	issues := &fakeIssues{}
	systems := &fakeSystems{}
	svc := NewService(repo, issues, systems, synthetic.NewRandom(7), db.NoTx{})
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, repo, issues, systems
}

func strp(s string) *string { return &s }

func TestService_Metrics_SyntheticCompleteness(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.counts = Counts{TotalPatients: 50, TotalSystems: 6, OpenIssues: 12, HighPriority: 4, OfflineSystems: 1, OpenDuplicates: 3, OpenMissing: 5}

	m, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.CompletenessSynthetic || m.CompletenessRate != 76.5 {
		t.Errorf("expected synthetic fallback, got %v (%v)", m.CompletenessRate, m.CompletenessSynthetic)
	}
	if m.TotalPatients != 50 || m.HighPriorityIssues != 4 || m.UnsynchronizedSystems != 1 ||
		m.DuplicatesDetected != 3 || m.MissingCriticalFields != 5 || m.OpenIssues != 12 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestService_Metrics_LatestObservation(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.observations = []*Observation{
		{MetricName: MetricCompletenessRate, MetricValue: 70, CalculatedAt: fixedNow.Add(-48 * time.Hour)},
		{MetricName: MetricCompletenessRate, MetricValue: 81.2, CalculatedAt: fixedNow.Add(-time.Hour)},
		{MetricName: "duplicate_rate", MetricValue: 3, CalculatedAt: fixedNow},
	}
	m, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CompletenessSynthetic || m.CompletenessRate != 81.2 {
		t.Errorf("expected latest observation 81.2, got %v (synthetic %v)", m.CompletenessRate, m.CompletenessSynthetic)
	}
}

func TestService_Alerts(t *testing.T) {
	svc, _, issues, _ := newTestService()
	detected := fixedNow.Add(-time.Hour)
	issues.views = []issue.View{{
		Issue:       &issue.Issue{ID: 4, Priority: issue.PriorityHigh, Title: "Duplicate record", DetectedAt: &detected},
		SystemName:  "HIS Principal",
		PatientName: strp("Ana Silva"),
	}}

	alerts, err := svc.Alerts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issues.got.Status != issue.StatusOpen || issues.got.Priority != issue.PriorityHigh || issues.page.PerPage != AlertLimit {
		t.Errorf("unexpected query %+v %+v", issues.got, issues.page)
	}
	if len(alerts) != 1 || alerts[0].Type != "critical" || alerts[0].SystemName != "HIS Principal" || *alerts[0].PatientName != "Ana Silva" {
		t.Errorf("unexpected alerts %+v", alerts)
	}
}

func TestService_SystemsStatus(t *testing.T) {
	svc, _, _, systems := newTestService()
	synced := fixedNow.Add(-90 * time.Minute)
	systems.views = []healthsystem.SystemView{
		{HealthSystem: &healthsystem.HealthSystem{ID: 1, Name: "HIS", SystemType: "HIS", Status: healthsystem.StatusOnline, LastSync: &synced, SyncFrequency: 60}},
		{HealthSystem: &healthsystem.HealthSystem{ID: 2, Name: "PACS", SystemType: "Imaging", Status: healthsystem.StatusOffline, SyncFrequency: 30}},
	}

	out, err := svc.SystemsStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 systems, got %d", len(out))
	}
	if out[0].TimeSinceSyncMinutes == nil || *out[0].TimeSinceSyncMinutes != 90 {
		t.Errorf("expected 90 minutes since sync, got %v", out[0].TimeSinceSyncMinutes)
	}
	if out[1].TimeSinceSyncMinutes != nil || out[1].Status != "offline" {
		t.Errorf("unexpected never-synced system %+v", out[1])
	}
}

func TestService_QuickActions(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   []string
	}{
		{"nothing open", Counts{}, nil},
		{"all kinds", Counts{OpenDuplicates: 12, OfflineSystems: 1, OpenMissing: 2}, []string{"resolve_duplicates", "sync_systems", "complete_fields"}},
		{"only missing", Counts{OpenMissing: 1}, []string{"complete_fields"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _ := newTestService()
			repo.counts = tt.counts
			actions, err := svc.QuickActions(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if actions == nil {
				t.Fatal("expected a non-nil slice")
			}
			if len(actions) != len(tt.want) {
				t.Fatalf("expected %d actions, got %d", len(tt.want), len(actions))
			}
			for i, id := range tt.want {
				if actions[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, actions[i].ID)
				}
			}
		})
	}
}

func TestService_QuickActions_Wording(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.counts = Counts{OpenDuplicates: 3, OfflineSystems: 1}
	actions, _ := svc.QuickActions(context.Background())
	if actions[0].Priority != issue.PriorityMedium || actions[0].Description != "3 duplicates detected" {
		t.Errorf("unexpected duplicate action %+v", actions[0])
	}
	if actions[1].Title != "Synchronize system" || actions[1].Description != "1 system offline" {
		t.Errorf("unexpected sync action %+v", actions[1])
	}
}

func TestService_RecordObservation(t *testing.T) {
	svc, repo, _, _ := newTestService()

	o := &Observation{MetricName: " completeness_rate ", MetricValue: 80, MetricUnit: strp("%"), Department: strp("  ")}
	if err := svc.RecordObservation(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID == 0 || o.MetricName != MetricCompletenessRate || !o.CalculatedAt.Equal(fixedNow) || o.Department != nil {
		t.Errorf("unexpected observation %+v", o)
	}
	if len(repo.observations) != 1 {
		t.Errorf("expected one stored observation, got %d", len(repo.observations))
	}

	bad := []*Observation{
		{MetricName: ""},
		{MetricName: strings.Repeat("m", 101)},
		{MetricName: "x", MetricUnit: strp(strings.Repeat("u", 21))},
	}
	for _, o := range bad {
		if err := svc.RecordObservation(context.Background(), o); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("expected validation error for %+v, got %v", o, err)
		}
	}
}

func TestService_Observations(t *testing.T) {
	svc, repo, _, _ := newTestService()
	for i, dept := range []string{"ICU", "ER", "ICU"} {
		d := dept
		repo.observations = append(repo.observations, &Observation{
			ID: int64(i + 1), MetricName: "completeness_rate", MetricValue: float64(70 + i),
			Department: &d, CalculatedAt: fixedNow.Add(time.Duration(i) * time.Hour),
		})
	}

	items, meta, err := svc.Observations(context.Background(), ObservationFilter{Department: "icu"}, pagination.New(1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Total != 2 || meta.Pages != 2 || !meta.HasNext {
		t.Errorf("unexpected meta %+v", meta)
	}
	if len(items) != 1 || items[0].ID != 3 {
		t.Errorf("expected newest ICU observation first, got %+v", items)
	}

	items, _, _ = svc.Observations(context.Background(), ObservationFilter{MetricName: "nothing"}, pagination.New(1, 20))
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}
}

func TestService_SyntheticPayloads(t *testing.T) {
	svc, _, _, _ := newTestService()
	if h := svc.Heatmap(); !h.Synthetic || len(h.Nodes) == 0 {
		t.Errorf("unexpected heatmap %+v", h)
	}
	if tr := svc.Trends(); !tr.Synthetic || len(tr.QualityEvolution) == 0 {
		t.Errorf("unexpected trends %+v", tr)
	}
}
