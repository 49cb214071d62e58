package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/domain/healthsystem"
	"github.com/healthgraph/radar/internal/domain/issue"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

// IssueSource lists issues for the alert feed.
type IssueSource interface {
	List(ctx context.Context, f issue.Filter, p pagination.Params) ([]issue.View, *pagination.Meta, error)
}

// SystemSource lists the registered source systems.
type SystemSource interface {
	List(ctx context.Context) ([]healthsystem.SystemView, error)
}

type Service struct {
	repo    Repository
	issues  IssueSource
	systems SystemSource
	synth   synthetic.Provider
	tx      db.TxRunner
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, issues IssueSource, systems SystemSource, synth synthetic.Provider, tx db.TxRunner) *Service {
	return &Service{
		repo:    repo,
		issues:  issues,
		systems: systems,
		synth:   synth,
		tx:      tx,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Metrics returns the headline figures. Completeness comes from the latest
// recorded observation and falls back to the synthetic provider.
func (s *Service) Metrics(ctx context.Context) (*Metrics, error) {
	c, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	m := &Metrics{
		DuplicatesDetected:    c.OpenDuplicates,
		MissingCriticalFields: c.OpenMissing,
		UnsynchronizedSystems: c.OfflineSystems,
		TotalPatients:         c.TotalPatients,
		TotalSystems:          c.TotalSystems,
		OpenIssues:            c.OpenIssues,
		HighPriorityIssues:    c.HighPriority,
	}
	latest, err := s.repo.Latest(ctx, MetricCompletenessRate)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		m.CompletenessRate = latest.MetricValue
	} else {
		m.CompletenessRate = s.synth.CompletenessRate()
		m.CompletenessSynthetic = true
	}
	return m, nil
}

// Alerts returns the most recent open high-priority issues.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	views, _, err := s.issues.List(ctx,
		issue.Filter{Status: issue.StatusOpen, Priority: issue.PriorityHigh},
		pagination.New(1, AlertLimit))
	if err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(views))
	for _, v := range views {
		alerts = append(alerts, Alert{
			ID:          v.ID,
			Type:        alertType(v.Priority),
			Title:       v.Title,
			Description: v.Description,
			DetectedAt:  v.DetectedAt,
			SystemName:  v.SystemName,
			PatientName: v.PatientName,
		})
	}
	return alerts, nil
}

func (s *Service) SystemsStatus(ctx context.Context) ([]SystemStatus, error) {
	views, err := s.systems.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]SystemStatus, 0, len(views))
	for _, v := range views {
		st := SystemStatus{
			ID:            v.ID,
			Name:          v.Name,
			Type:          v.SystemType,
			Status:        string(v.Status),
			LastSync:      v.LastSync,
			SyncFrequency: v.SyncFrequency,
			Description:   v.Description,
		}
		if v.LastSync != nil {
			mins := max(0, int(now.Sub(*v.LastSync).Minutes()))
			st.TimeSinceSyncMinutes = &mins
		}
		out = append(out, st)
	}
	return out, nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// QuickActions suggests bulk actions for the problems currently open.
func (s *Service) QuickActions(ctx context.Context) ([]QuickAction, error) {
	c, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	actions := []QuickAction{}
	if c.OpenDuplicates > 0 {
		prio := issue.PriorityMedium
		if c.OpenDuplicates > 10 {
			prio = issue.PriorityHigh
		}
		actions = append(actions, QuickAction{
			ID:          "resolve_duplicates",
			Title:       "Resolve duplicates automatically",
			Description: fmt.Sprintf("%d %s detected", c.OpenDuplicates, plural(c.OpenDuplicates, "duplicate")),
			Icon:        "🔧",
			Priority:    prio,
		})
	}
	if c.OfflineSystems > 0 {
		actions = append(actions, QuickAction{
			ID:          "sync_systems",
			Title:       "Synchronize " + plural(c.OfflineSystems, "system"),
			Description: fmt.Sprintf("%d %s offline", c.OfflineSystems, plural(c.OfflineSystems, "system")),
			Icon:        "🔄",
			Priority:    issue.PriorityHigh,
		})
	}
	if c.OpenMissing > 0 {
		actions = append(actions, QuickAction{
			ID:          "complete_fields",
			Title:       "Complete required fields",
			Description: fmt.Sprintf("%d critical %s missing", c.OpenMissing, plural(c.OpenMissing, "field")),
			Icon:        "📋",
			Priority:    issue.PriorityMedium,
		})
	}
	return actions, nil
}

func (s *Service) Heatmap() synthetic.Heatmap {
	return s.synth.Heatmap()
}

func (s *Service) Trends() synthetic.Trends {
	return s.synth.DashboardTrends(s.now())
}

func trimOptional(p **string, name string, limit int) error {
	if *p == nil {
		return nil
	}
	v := strings.TrimSpace(**p)
	if v == "" {
		*p = nil
		return nil
	}
	if len(v) > limit {
		return apperr.Validation("%s must be at most %d characters", name, limit)
	}
	*p = &v
	return nil
}

// RecordObservation appends a metric sample. calculated_at defaults to now.
func (s *Service) RecordObservation(ctx context.Context, o *Observation) error {
	o.MetricName = strings.TrimSpace(o.MetricName)
	if o.MetricName == "" {
		return apperr.Validation("metric_name is required")
	}
	if len(o.MetricName) > 100 {
		return apperr.Validation("metric_name must be at most 100 characters")
	}
	if err := trimOptional(&o.MetricUnit, "metric_unit", 20); err != nil {
		return err
	}
	if err := trimOptional(&o.Department, "department", 100); err != nil {
		return err
	}
	if o.CalculatedAt.IsZero() {
		o.CalculatedAt = s.now().UTC()
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateObservation(ctx, o)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("metric", o.MetricName).Float64("value", o.MetricValue).Msg("metric observation recorded")
	return nil
}

func (s *Service) Observations(ctx context.Context, f ObservationFilter, p pagination.Params) ([]*Observation, *pagination.Meta, error) {
	f.MetricName = strings.TrimSpace(f.MetricName)
	f.Department = strings.TrimSpace(f.Department)
	items, total, err := s.repo.ListObservations(ctx, f, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []*Observation{}
	}
	return items, pagination.NewMeta(p, total), nil
}
