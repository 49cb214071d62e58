package issue

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/internal/platform/events"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/elapsed"
	"github.com/healthgraph/radar/pkg/pagination"
)

const (
	similarLimit = 5
	metricsDays  = 30
	maxTitleLen  = 200

	// HistoryPerPage is the default page size of the resolution history.
	HistoryPerPage = 10
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	pub    events.Publisher
	logger zerolog.Logger
	now    func() time.Time

	resolved *prometheus.CounterVec
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		pub:    events.Nop{},
		logger: zerolog.Nop(),
		now:    time.Now,
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_issues_resolved_total",
			Help: "Data-quality issues resolved, by issue type",
		}, []string{"issue_type"}),
	}
}

func (s *Service) SetPublisher(p events.Publisher) { s.pub = p }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(s.resolved)
}

// Validate checks the enum fields of f.
func (f Filter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return apperr.Validation("invalid status %q", f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return apperr.Validation("invalid priority %q", f.Priority)
	}
	if f.Type != "" && !f.Type.Valid() {
		return apperr.Validation("invalid issue type %q", f.Type)
	}
	return nil
}

func (s *Service) view(r *Row, now time.Time) View {
	v := View{
		Issue:               &r.Issue,
		SystemName:          unknownSystem,
		SystemType:          r.SystemType,
		PatientName:         r.PatientName,
		PatientCode:         r.PatientCode,
		EstimatedResolution: EstimatedResolution(r.IssueType),
	}
	if r.SystemName != nil {
		v.SystemName = *r.SystemName
	}
	if r.DetectedAt != nil {
		since := elapsed.Span(now, *r.DetectedAt)
		v.TimeSinceDetection = &since
	}
	return v
}

// List returns one page of issues ordered by priority rank, then most
// recently detected, then id.
func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) ([]View, *pagination.Meta, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.List(ctx, f, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, s.view(r, now))
	}
	return views, pagination.NewMeta(p, total), nil
}

// ForPatient returns every issue recorded against a patient in listing
// order. The result is not paged.
func (s *Service) ForPatient(ctx context.Context, patientID int64) ([]*Issue, error) {
	rows, err := s.repo.ListByPatient(ctx, patientID, "")
	if err != nil {
		return nil, err
	}
	out := make([]*Issue, 0, len(rows))
	for _, r := range rows {
		iss := r.Issue
		out = append(out, &iss)
	}
	return out, nil
}

// OpenForPatient returns every open issue of a patient with the joined
// display fields, in listing order.
func (s *Service) OpenForPatient(ctx context.Context, patientID int64) ([]View, error) {
	rows, err := s.repo.ListByPatient(ctx, patientID, StatusOpen)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, s.view(r, now))
	}
	return views, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Details, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	similar, err := s.repo.Similar(ctx, &r.Issue, similarLimit)
	if err != nil {
		return nil, err
	}
	if similar == nil {
		similar = []*Issue{}
	}
	v := s.view(r, s.now())
	v.TimeSinceDetection = nil
	v.EstimatedResolution = ""
	return &Details{Issue: v, Similar: similar}, nil
}

// Create records a newly detected issue. It always starts open.
func (s *Service) Create(ctx context.Context, iss *Issue) error {
	iss.Title = strings.TrimSpace(iss.Title)
	if iss.Title == "" {
		return apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(iss.Title) > maxTitleLen {
		return apperr.Validation("title must be at most %d characters", maxTitleLen)
	}
	if iss.SystemID <= 0 {
		return apperr.Validation("system_id is required")
	}
	if !iss.IssueType.Valid() {
		return apperr.Validation("invalid issue type %q", iss.IssueType)
	}
	if iss.Priority == "" {
		iss.Priority = PriorityMedium
	}
	if !iss.Priority.Valid() {
		return apperr.Validation("invalid priority %q", iss.Priority)
	}
	if iss.PatientID != nil && *iss.PatientID <= 0 {
		return apperr.Validation("invalid patient_id")
	}
	iss.Status = StatusOpen
	iss.ResolvedAt = nil
	iss.ResolutionTime = nil
	iss.ResolutionNotes = nil
	now := s.now().UTC()
	if iss.DetectedAt == nil {
		iss.DetectedAt = &now
	} else if iss.DetectedAt.After(now) {
		return apperr.Validation("detected_at cannot be in the future")
	}

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, iss)
	}); err != nil {
		return err
	}
	s.pub.Publish(ctx, events.New(events.IssueDetected, strconv.FormatInt(iss.ID, 10), iss))
	return nil
}

// Start moves an open issue to in_progress. Starting an issue already in
// progress is a no-op.
func (s *Service) Start(ctx context.Context, id int64) (*Issue, error) {
	var iss *Issue
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if iss, err = s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		switch iss.Status {
		case StatusResolved:
			return apperr.Conflict("issue already resolved")
		case StatusInProgress:
			return nil
		}
		if err := s.repo.SetStatus(ctx, id, StatusInProgress); err != nil {
			return err
		}
		iss.Status = StatusInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}
	return iss, nil
}

// ResolutionMinutes is the whole number of minutes between detection and
// now, never negative. ok is false when the detection time is unknown.
func ResolutionMinutes(detectedAt *time.Time, now time.Time) (minutes int, ok bool) {
	if detectedAt == nil {
		return 0, false
	}
	m := int(math.Floor(now.Sub(*detectedAt).Minutes()))
	if m < 0 {
		m = 0
	}
	return m, true
}

// Resolve closes an issue. The row is locked for the duration so that of two
// concurrent resolves exactly one succeeds; the other gets a conflict.
func (s *Service) Resolve(ctx context.Context, id int64, notes string) (*Issue, error) {
	var iss *Issue
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if iss, err = s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if iss.Status == StatusResolved {
			return apperr.Conflict("issue already resolved")
		}

		now := s.now().UTC()
		minutes, ok := ResolutionMinutes(iss.DetectedAt, now)
		if !ok {
			s.logger.Warn().Int64("issue_id", id).Msg("resolving issue without detection time, resolution time recorded as 0")
		}
		var n *string
		if notes = strings.TrimSpace(notes); notes != "" {
			n = &notes
		}
		if err := s.repo.Resolve(ctx, id, now, minutes, n); err != nil {
			return err
		}

		iss.Status = StatusResolved
		iss.ResolvedAt = &now
		iss.ResolutionTime = &minutes
		iss.ResolutionNotes = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolved.WithLabelValues(string(iss.IssueType)).Inc()
	s.pub.Publish(ctx, events.New(events.IssueResolved, strconv.FormatInt(iss.ID, 10), iss))
	return iss, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Metrics summarizes the resolution center over the last 30 days.
func (s *Service) Metrics(ctx context.Context) (*Metrics, error) {
	since := s.now().UTC().AddDate(0, 0, -metricsDays)
	st, err := s.repo.Stats(ctx, since)
	if err != nil {
		return nil, err
	}
	m := &Metrics{
		TotalOpen:            st.Open,
		ResolvedThisMonth:    st.ResolvedSince,
		PriorityDistribution: st.ByPriority,
		TypeDistribution:     st.ByType,
	}
	if st.AvgResolutionMinutes != nil {
		m.AvgResolutionHours = round1(*st.AvgResolutionMinutes / 60)
	}
	if st.DetectedSince > 0 {
		m.ResolutionRate = round1(float64(st.ResolvedSince) / float64(st.DetectedSince) * 100)
	}
	return m, nil
}

// History lists resolved issues, most recently resolved first.
func (s *Service) History(ctx context.Context, p pagination.Params) ([]HistoryItem, *pagination.Meta, error) {
	rows, total, err := s.repo.History(ctx, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	items := make([]HistoryItem, 0, len(rows))
	for _, r := range rows {
		item := HistoryItem{
			ID:                    r.ID,
			Title:                 r.Title,
			Description:           r.Description,
			IssueType:             r.IssueType,
			Priority:              r.Priority,
			ResolvedAt:            r.ResolvedAt,
			ResolutionTimeDisplay: "N/A",
			ResolutionTimeMinutes: r.ResolutionTime,
			ResolutionNotes:       r.ResolutionNotes,
			SystemName:            unknownSystem,
		}
		if r.ResolutionTime != nil {
			item.ResolutionTimeDisplay = elapsed.Minutes(*r.ResolutionTime)
		}
		if r.SystemName != nil {
			item.SystemName = *r.SystemName
		}
		items = append(items, item)
	}
	return items, pagination.NewMeta(p, total), nil
}

func (s *Service) Wizards() []Wizard {
	return wizards
}
