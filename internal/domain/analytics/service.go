// Package analytics serves the demo analytics screens. Every figure comes
// from a synthetic.Provider and is labelled as synthetic.
package analytics

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/apperr"
)

const (
	DefaultTrendDays = 30
	MaxTrendDays     = 365
)

type Departments struct {
	Synthetic   bool                   `json:"synthetic"`
	Departments []synthetic.Department `json:"departments"`
}

type Reports struct {
	Synthetic bool               `json:"synthetic"`
	Reports   []synthetic.Report `json:"reports"`
}

type KPIs struct {
	Synthetic bool                     `json:"synthetic"`
	KPIs      map[string]synthetic.KPI `json:"kpis"`
}

// GenerateRequest is the body of a report generation call.
type GenerateRequest struct {
	Format    string `json:"format"`
	DateRange string `json:"date_range"`
}

type Service struct {
	synth  synthetic.Provider
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(synth synthetic.Provider) *Service {
	return &Service{synth: synth, logger: zerolog.Nop(), now: time.Now}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Trends(days int) (synthetic.Trends, error) {
	if days < 1 || days > MaxTrendDays {
		return synthetic.Trends{}, apperr.Validation("days must be between 1 and %d", MaxTrendDays)
	}
	return s.synth.QualityTrends(days, s.now()), nil
}

func (s *Service) Departments() Departments {
	return Departments{Synthetic: true, Departments: s.synth.Departments(s.now())}
}

func (s *Service) ROI() synthetic.ROI {
	return s.synth.ROI()
}

func (s *Service) Reports() Reports {
	return Reports{Synthetic: true, Reports: s.synth.Reports(s.now())}
}

// GenerateReport simulates producing report id in the requested format.
func (s *Service) GenerateReport(id string, req GenerateRequest) (*synthetic.GeneratedReport, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("report id is required")
	}
	out, err := s.synth.GenerateReport(id, strings.TrimSpace(req.Format), strings.TrimSpace(req.DateRange), s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("report_id", out.ReportID).Str("format", out.Format).Msg("report generated")
	return out, nil
}

func (s *Service) KPIs() KPIs {
	return KPIs{Synthetic: true, KPIs: s.synth.KPIs()}
}

// QualityChart returns one data-quality chart; kind defaults to completeness.
func (s *Service) QualityChart(kind string) (*synthetic.Chart, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = synthetic.ChartCompleteness
	}
	return s.synth.QualityChart(kind, s.now())
}
