package synthetic

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/healthgraph/radar/pkg/apperr"
)

// Chart kinds served by QualityChart.
const (
	ChartCompleteness    = "completeness"
	ChartIssuesEvolution = "issues_evolution"
	ChartCriticality     = "criticality"
)

// Random is the default Provider. Its output is drawn from a seeded source so
// tests and demos can be reproduced with SYNTHETIC_SEED.
type Random struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

// NewRandom returns a provider seeded with seed, or with the clock when seed is 0.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

func (r *Random) intn(min, max int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.Intn(max-min+1)
}

func (r *Random) uniform(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.Float64()*(max-min)
}

// chance reports true with probability p.
func (r *Random) chance(p float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < p
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// QualityTrends returns one point per day for the last days days, oldest first.
func (r *Random) QualityTrends(days int, now time.Time) Trends {
	t := Trends{Synthetic: true}
	for i := days - 1; i >= 0; i-- {
		d := day(now.AddDate(0, 0, -i))
		quality := math.Min(100, math.Max(0, 70+float64(i)*0.2+r.uniform(-3, 3)))
		t.QualityEvolution = append(t.QualityEvolution, DatedValue{d, round1(quality)})
		t.IssuesResolved = append(t.IssuesResolved, DatedValue{d, float64(r.intn(15, 35))})
		t.SystemAvailability = append(t.SystemAvailability, DatedValue{d, round1(r.uniform(97, 99.9))})
		t.DataCompleteness = append(t.DataCompleteness, DatedValue{d, round1(r.uniform(75, 85))})
	}
	return t
}

var dashboardTrendSeries = struct {
	quality, resolved, availability []float64
}{
	quality:      []float64{72, 74, 76, 78, 75, 77, 76},
	resolved:     []float64{15, 18, 22, 19, 25, 21, 23},
	availability: []float64{98.5, 99.1, 97.8, 99.3, 98.9, 99.2, 99.2},
}

// DashboardTrends returns seven points five days apart ending today.
func (r *Random) DashboardTrends(now time.Time) Trends {
	t := Trends{Synthetic: true}
	n := len(dashboardTrendSeries.quality)
	for i := 0; i < n; i++ {
		d := day(now.AddDate(0, 0, -5*(n-1-i)))
		t.QualityEvolution = append(t.QualityEvolution, DatedValue{d, dashboardTrendSeries.quality[i]})
		t.IssuesResolved = append(t.IssuesResolved, DatedValue{d, dashboardTrendSeries.resolved[i]})
		t.SystemAvailability = append(t.SystemAvailability, DatedValue{d, dashboardTrendSeries.availability[i]})
	}
	return t
}

func (r *Random) Departments(now time.Time) []Department {
	rows := []Department{
		{Name: "Cardiology", TotalRecords: 1567, CompletenessPercentage: 98, OpenIssues: 2, AvgResolutionHours: 1.5},
		{Name: "Laboratory", TotalRecords: 2341, CompletenessPercentage: 94, OpenIssues: 5, AvgResolutionHours: 2.1},
		{Name: "Emergency", TotalRecords: 789, CompletenessPercentage: 82, OpenIssues: 12, AvgResolutionHours: 3.2},
		{Name: "Outpatient", TotalRecords: 1234, CompletenessPercentage: 76, OpenIssues: 18, AvgResolutionHours: 4.1},
		{Name: "Inpatient", TotalRecords: 567, CompletenessPercentage: 91, OpenIssues: 3, AvgResolutionHours: 1.8},
		{Name: "Radiology", TotalRecords: 892, CompletenessPercentage: 88, OpenIssues: 7, AvgResolutionHours: 2.5},
	}
	for i := range rows {
		rows[i].QualityScore = qualityLabel(rows[i].CompletenessPercentage)
		rows[i].LastUpdate = now.UTC()
		rows[i].Synthetic = true
	}
	return rows
}

func qualityLabel(completeness int) string {
	switch {
	case completeness >= 90:
		return "excellent"
	case completeness >= 80:
		return "good"
	default:
		return "needs_improvement"
	}
}

func (r *Random) ROI() ROI {
	return ROI{
		Synthetic:              true,
		AnnualSavings:          2400000,
		ROIPercentage:          340,
		PaybackMonths:          8,
		HoursSavedMonthly:      1250,
		CostPerErrorAvoided:    1500,
		ErrorsPreventedMonthly: 45,
		Breakdown: map[string]SavingsItem{
			"reduced_medical_errors":   {1200000, "Fewer clinical errors caused by incomplete information"},
			"process_optimization":     {800000, "Less rework and streamlined processes"},
			"improved_decision_making": {300000, "Better clinical decisions"},
			"regulatory_compliance":    {100000, "Automatic regulatory compliance"},
		},
		MonthlyMetrics: []MonthlySavings{
			{"Jan", 180000, 50000},
			{"Feb", 195000, 45000},
			{"Mar", 210000, 40000},
			{"Apr", 225000, 35000},
			{"May", 240000, 30000},
			{"Jun", 250000, 25000},
		},
	}
}

func (r *Random) Reports(now time.Time) []Report {
	now = now.UTC()
	return []Report{
		{"quality_report", "Data quality report", "Full analysis of data quality", "quality",
			now.Add(-2 * time.Hour), "daily", []string{"PDF", "Excel"}, "5 minutes"},
		{"integration_report", "Integrations report", "Status and performance of integrations", "integration",
			now.AddDate(0, 0, -1), "weekly", []string{"PDF", "Excel"}, "3 minutes"},
		{"roi_report", "ROI report", "Return on investment analysis", "financial",
			now.AddDate(0, 0, -3), "monthly", []string{"PDF", "PowerPoint"}, "8 minutes"},
		{"executive_report", "Executive report", "Executive summary for managers", "executive",
			now, "weekly", []string{"PDF", "PowerPoint"}, "10 minutes"},
	}
}

func (r *Random) GenerateReport(reportID, format, dateRange string, now time.Time) (*GeneratedReport, error) {
	var known *Report
	for _, rep := range r.Reports(now) {
		if rep.ID == reportID {
			rep := rep
			known = &rep
			break
		}
	}
	if known == nil {
		return nil, apperr.NotFound("report %q not found", reportID)
	}

	if format == "" {
		format = known.Formats[0]
	}
	supported := false
	for _, f := range known.Formats {
		if f == format {
			supported = true
		}
	}
	if !supported {
		return nil, apperr.Validation("format %q is not available for report %q", format, reportID)
	}
	if dateRange == "" {
		dateRange = "30_days"
	}

	out := &GeneratedReport{
		Synthetic:   true,
		ReportID:    reportID,
		Format:      format,
		DateRange:   dateRange,
		GeneratedAt: now.UTC(),
		Status:      "completed",
		DownloadURL: fmt.Sprintf("/api/analytics/reports/%s/download", reportID),
		FileSize:    fmt.Sprintf("%d KB", r.intn(500, 2000)),
		Pages:       r.intn(5, 25),
	}
	switch reportID {
	case "quality_report":
		out.Summary = map[string]interface{}{
			"overall_quality_score": 87.5,
			"total_issues_found":    234,
			"issues_resolved":       189,
			"critical_issues":       12,
		}
	case "integration_report":
		out.Summary = map[string]interface{}{
			"systems_monitored": 8,
			"uptime_percentage": 99.2,
			"failed_syncs":      5,
			"data_volume_gb":    45.7,
		}
	case "roi_report":
		out.Summary = map[string]interface{}{
			"annual_savings":  2400000,
			"roi_percentage":  340,
			"payback_months":  8,
			"efficiency_gain": 35,
		}
	}
	return out, nil
}

func (r *Random) KPIs() map[string]KPI {
	return map[string]KPI{
		"data_quality_score":      {87.3, 84.1, "up", "%"},
		"issues_resolution_rate":  {94.2, 91.8, "up", "%"},
		"average_resolution_time": {2.1, 2.8, "down", "hours"},
		"system_availability":     {99.2, 98.7, "up", "%"},
		"data_completeness":       {76.5, 73.2, "up", "%"},
		"cost_savings_monthly":    {200000, 185000, "up", "BRL"},
	}
}

// QualityChart returns the data behind one of the data-quality charts.
func (r *Random) QualityChart(kind string, now time.Time) (*Chart, error) {
	c := &Chart{Synthetic: true, ChartType: kind}
	switch kind {
	case ChartCompleteness:
		for _, row := range []struct {
			system string
			value  int
		}{
			{"HIS Main", 92}, {"LIS", 88}, {"PACS", 85},
			{"Billing", 76}, {"Pharmacy", 91}, {"Outpatient", 82},
		} {
			c.Data = append(c.Data, map[string]interface{}{"system": row.system, "completeness": row.value})
		}
	case ChartIssuesEvolution:
		for i := 29; i >= 0; i-- {
			c.Data = append(c.Data, map[string]interface{}{
				"date":            day(now.AddDate(0, 0, -i)),
				"open_issues":     r.intn(15, 45),
				"resolved_issues": r.intn(10, 35),
			})
		}
	case ChartCriticality:
		c.Data = []map[string]interface{}{
			{"priority": "high", "count": 23, "percentage": 18.5},
			{"priority": "medium", "count": 67, "percentage": 53.6},
			{"priority": "low", "count": 35, "percentage": 28.0},
		}
	default:
		return nil, apperr.Validation("unknown chart type %q", kind)
	}
	return c, nil
}

func (r *Random) Heatmap() Heatmap {
	return Heatmap{
		Synthetic: true,
		Nodes: []HeatmapNode{
			{"his_main", "HIS Main", "HIS", 85, 100, 100},
			{"lis_lab", "Laboratory System", "LIS", 92, 200, 150},
			{"pacs_images", "PACS Imaging", "PACS", 78, 300, 100},
			{"billing", "Billing", "Billing", 65, 150, 250},
			{"pharmacy", "Pharmacy", "Pharmacy", 88, 250, 200},
			{"ambulatory", "Outpatient", "Ambulatory", 91, 350, 180},
		},
		Connections: []HeatmapLink{
			{"his_main", "lis_lab", 0.9},
			{"his_main", "pacs_images", 0.7},
			{"his_main", "billing", 0.6},
			{"his_main", "pharmacy", 0.8},
			{"his_main", "ambulatory", 0.85},
			{"lis_lab", "pharmacy", 0.75},
		},
	}
}

// CompletenessRate is the dashboard fallback when no completeness_rate
// observation has been recorded.
func (r *Random) CompletenessRate() float64 {
	return 76.5
}

// logStatus maps n in [1, 5] to success 3/5, warning 1/5, error 1/5.
func logStatus(n int) string {
	switch {
	case n <= 3:
		return "success"
	case n == 4:
		return "warning"
	default:
		return "error"
	}
}

// slotRand is the source of one sync slot of one system. It depends only on
// the provider seed, the system and the slot time.
func (r *Random) slotRand(systemID int64, at time.Time) *rand.Rand {
	return rand.New(rand.NewSource(r.seed ^ systemID*1_000_003 ^ at.Unix()))
}

// SyncLogs simulates one log entry per scheduled sync of every system within
// the last hours hours, newest first. Slots are aligned to each system's
// frequency and drawn from slotRand, so calls made within the same slot
// return the same logs and a listing can be paged.
func (r *Random) SyncLogs(systems []SystemRef, hours int, now time.Time) []SyncLog {
	var logs []SyncLog
	for _, s := range systems {
		freq := s.SyncFrequency
		if freq <= 0 {
			freq = 60
		}
		step := time.Duration(freq) * time.Minute
		latest := now.UTC().Truncate(step)
		count := hours * 60 / freq
		for i := 0; i < count; i++ {
			at := latest.Add(-time.Duration(i) * step)
			rng := r.slotRand(s.ID, at)
			entry := SyncLog{
				Timestamp:  at,
				SystemID:   s.ID,
				SystemName: s.Name,
				SystemType: s.Type,
				Status:     logStatus(1 + rng.Intn(5)),
			}
			switch entry.Status {
			case "success":
				entry.Message = s.Name + " - sync completed"
				entry.Details = fmt.Sprintf("%d records synchronized", 5+rng.Intn(146))
			case "warning":
				entry.Message = s.Name + " - high latency detected"
				entry.Details = fmt.Sprintf("response time: %dms", 1000+rng.Intn(2001))
			default:
				entry.Message = s.Name + " - sync failed"
				entry.Details = "connection timeout"
			}
			logs = append(logs, entry)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	for i := range logs {
		logs[i].ID = i + 1
	}
	return logs
}

// SystemLogs returns the ten most recent simulated logs of one system, 2.5h apart.
func (r *Random) SystemLogs(s SystemRef, now time.Time) []SyncLog {
	logs := make([]SyncLog, 0, 10)
	for i := 0; i < 10; i++ {
		entry := SyncLog{
			ID:        i + 1,
			Timestamp: now.UTC().Add(-time.Duration(i) * 150 * time.Minute),
			Status:    logStatus(r.intn(1, 5)),
		}
		switch entry.Status {
		case "success":
			entry.Message = s.Name + " - sync completed"
			entry.Details = fmt.Sprintf("%d records synchronized", r.intn(10, 100))
		case "warning":
			entry.Message = s.Name + " - connection timeout (recovered)"
			entry.Details = "connection re-established automatically"
		default:
			entry.Message = s.Name + " - authentication failed"
			entry.Details = "credentials need to be checked"
		}
		logs = append(logs, entry)
	}
	return logs
}

func (r *Random) SystemMetrics() SystemMetrics {
	return SystemMetrics{
		Synthetic:          true,
		UptimePercentage:   round1(r.uniform(95, 99.9)),
		AverageResponseMS:  round1(r.uniform(100, 500)),
		TotalRecords:       r.intn(1000, 50000),
		Last24hSyncs:       r.intn(20, 48),
		FailedSyncsLast24h: r.intn(0, 3),
	}
}

func (r *Random) FieldMappings(now time.Time) []FieldMapping {
	now = now.UTC()
	return []FieldMapping{
		{
			ID:           1,
			SourceSystem: "HIS Main",
			TargetSystem: "Laboratory System",
			FieldMappings: []FieldPair{
				{"patient_id", "patient_code"},
				{"patient_name", "patient_full_name"},
				{"birth_date", "date_of_birth"},
			},
			Status:      "active",
			LastUpdated: now,
		},
		{
			ID:           2,
			SourceSystem: "PACS",
			TargetSystem: "HIS Main",
			FieldMappings: []FieldPair{
				{"study_id", "exam_id"},
				{"patient_id", "patient_id"},
				{"modality", "modality"},
			},
			Status:      "active",
			LastUpdated: now,
		},
	}
}
