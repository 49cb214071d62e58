package dashboard

import (
	"time"

	"github.com/healthgraph/radar/internal/domain/issue"
)

// MetricCompletenessRate is the observation name the dashboard reads its
// completeness figure from.
const MetricCompletenessRate = "completeness_rate"

// Observation is one append-only dashboard metric sample.
type Observation struct {
	ID           int64     `json:"id"`
	MetricName   string    `json:"metric_name"`
	MetricValue  float64   `json:"metric_value"`
	MetricUnit   *string   `json:"metric_unit"`
	Department   *string   `json:"department"`
	CalculatedAt time.Time `json:"calculated_at"`
}

type ObservationFilter struct {
	MetricName string
	Department string
}

// Counts are the live aggregates behind the headline cards.
type Counts struct {
	TotalPatients  int
	TotalSystems   int
	OpenIssues     int
	HighPriority   int
	OfflineSystems int
	OpenDuplicates int
	OpenMissing    int
}

type Metrics struct {
	CompletenessRate      float64 `json:"completeness_rate"`
	CompletenessSynthetic bool    `json:"completeness_synthetic"`
	DuplicatesDetected    int     `json:"duplicates_detected"`
	MissingCriticalFields int     `json:"missing_critical_fields"`
	UnsynchronizedSystems int     `json:"unsynchronized_systems"`
	TotalPatients         int     `json:"total_patients"`
	TotalSystems          int     `json:"total_systems"`
	OpenIssues            int     `json:"open_issues"`
	HighPriorityIssues    int     `json:"high_priority_issues"`
}

// AlertLimit caps the priority alert feed.
const AlertLimit = 10

type Alert struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DetectedAt  *time.Time `json:"detected_at"`
	SystemName  string     `json:"system_name"`
	PatientName *string    `json:"patient_name"`
}

func alertType(p issue.Priority) string {
	if p == issue.PriorityHigh {
		return "critical"
	}
	return "warning"
}

type SystemStatus struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Type                 string     `json:"type"`
	Status               string     `json:"status"`
	LastSync             *time.Time `json:"last_sync"`
	TimeSinceSyncMinutes *int       `json:"time_since_sync_minutes"`
	SyncFrequency        int        `json:"sync_frequency"`
	Description          *string    `json:"description"`
}

type QuickAction struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Priority    issue.Priority `json:"priority"`
}
