// Package synthetic produces the demo figures shown by the dashboard where no
// real computation exists yet: trends, department analysis, ROI, report
// generation, sync logs, heatmap. Every payload it returns is marked with
// "synthetic": true so clients never mistake it for measured data.
package synthetic

import (
	"time"
)

// Provider is the source of all simulated analytics. A real implementation
// can replace individual methods without touching the aggregation code.
type Provider interface {
	QualityTrends(days int, now time.Time) Trends
	DashboardTrends(now time.Time) Trends
	Departments(now time.Time) []Department
	ROI() ROI
	Reports(now time.Time) []Report
	GenerateReport(reportID, format, dateRange string, now time.Time) (*GeneratedReport, error)
	KPIs() map[string]KPI
	QualityChart(kind string, now time.Time) (*Chart, error)
	Heatmap() Heatmap
	CompletenessRate() float64
	SyncLogs(systems []SystemRef, hours int, now time.Time) []SyncLog
	SystemLogs(system SystemRef, now time.Time) []SyncLog
	SystemMetrics() SystemMetrics
	FieldMappings(now time.Time) []FieldMapping
}

// SystemRef is the slice of a health system the provider needs.
type SystemRef struct {
	ID            int64
	Name          string
	Type          string
	SyncFrequency int
}

type DatedValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type Trends struct {
	Synthetic          bool         `json:"synthetic"`
	QualityEvolution   []DatedValue `json:"quality_evolution"`
	IssuesResolved     []DatedValue `json:"issues_resolved"`
	SystemAvailability []DatedValue `json:"system_availability"`
	DataCompleteness   []DatedValue `json:"data_completeness,omitempty"`
}

type Department struct {
	Name                   string    `json:"name"`
	TotalRecords           int       `json:"total_records"`
	CompletenessPercentage int       `json:"completeness_percentage"`
	QualityScore           string    `json:"quality_score"`
	OpenIssues             int       `json:"open_issues"`
	AvgResolutionHours     float64   `json:"avg_resolution_time"`
	LastUpdate             time.Time `json:"last_update"`
	Synthetic              bool      `json:"synthetic"`
}

type SavingsItem struct {
	Savings     int    `json:"savings"`
	Description string `json:"description"`
}

type MonthlySavings struct {
	Month      string `json:"month"`
	Savings    int    `json:"savings"`
	Investment int    `json:"investment"`
}

type ROI struct {
	Synthetic              bool                   `json:"synthetic"`
	AnnualSavings          int                    `json:"annual_savings"`
	ROIPercentage          int                    `json:"roi_percentage"`
	PaybackMonths          int                    `json:"payback_months"`
	HoursSavedMonthly      int                    `json:"hours_saved_monthly"`
	CostPerErrorAvoided    int                    `json:"cost_per_error_avoided"`
	ErrorsPreventedMonthly int                    `json:"errors_prevented_monthly"`
	Breakdown              map[string]SavingsItem `json:"breakdown"`
	MonthlyMetrics         []MonthlySavings       `json:"monthly_metrics"`
}

type Report struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	LastGenerated time.Time `json:"last_generated"`
	Frequency     string    `json:"frequency"`
	Formats       []string  `json:"format"`
	EstimatedTime string    `json:"estimated_time"`
}

type GeneratedReport struct {
	Synthetic   bool                   `json:"synthetic"`
	ReportID    string                 `json:"report_id"`
	Format      string                 `json:"format"`
	DateRange   string                 `json:"date_range"`
	GeneratedAt time.Time              `json:"generated_at"`
	Status      string                 `json:"status"`
	DownloadURL string                 `json:"download_url"`
	FileSize    string                 `json:"file_size"`
	Pages       int                    `json:"pages"`
	Summary     map[string]interface{} `json:"summary,omitempty"`
}

type KPI struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Trend    string  `json:"trend"`
	Unit     string  `json:"unit"`
}

type Chart struct {
	Synthetic bool                     `json:"synthetic"`
	ChartType string                   `json:"chart_type"`
	Data      []map[string]interface{} `json:"data"`
}

type HeatmapNode struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Health int    `json:"health"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type HeatmapLink struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

type Heatmap struct {
	Synthetic   bool          `json:"synthetic"`
	Nodes       []HeatmapNode `json:"nodes"`
	Connections []HeatmapLink `json:"connections"`
}

type SyncLog struct {
	ID         int       `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	SystemID   int64     `json:"system_id,omitempty"`
	SystemName string    `json:"system_name,omitempty"`
	SystemType string    `json:"system_type,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Details    string    `json:"details"`
}

type SystemMetrics struct {
	Synthetic          bool    `json:"synthetic"`
	UptimePercentage   float64 `json:"uptime_percentage"`
	AverageResponseMS  float64 `json:"average_response_time"`
	TotalRecords       int     `json:"total_records"`
	Last24hSyncs       int     `json:"last_24h_syncs"`
	FailedSyncsLast24h int     `json:"failed_syncs_24h"`
}

type FieldPair struct {
	SourceField string `json:"source_field"`
	TargetField string `json:"target_field"`
}

type FieldMapping struct {
	ID            int         `json:"id"`
	SourceSystem  string      `json:"source_system"`
	TargetSystem  string      `json:"target_system"`
	FieldMappings []FieldPair `json:"field_mappings"`
	Status        string      `json:"status"`
	LastUpdated   time.Time   `json:"last_updated"`
}
