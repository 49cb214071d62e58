package healthsystem

import (
	"fmt"
	"time"

	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/elapsed"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusWarning Status = "warning"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusWarning, StatusOffline:
		return true
	}
	return false
}

const DefaultSyncFrequency = 60

// HealthSystem is an external source system (HIS, LIS, PACS, ...) the
// hospital synchronizes records from.
type HealthSystem struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	SystemType    string     `json:"system_type"`
	Status        Status     `json:"status"`
	LastSync      *time.Time `json:"last_sync"`
	SyncFrequency int        `json:"sync_frequency"`
	Description   *string    `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Ref is the view handed to the synthetic provider.
func (s *HealthSystem) Ref() synthetic.SystemRef {
	return synthetic.SystemRef{ID: s.ID, Name: s.Name, Type: s.SystemType, SyncFrequency: s.SyncFrequency}
}

// Sync health as shown next to each system.
const (
	SyncSuccess = "success"
	SyncWarning = "warning"
	SyncError   = "error"
)

// SyncHealth is warning once the last sync is more than twice the configured
// frequency old and error beyond four times, or when it never synced.
func (s *HealthSystem) SyncHealth(now time.Time) string {
	if s.LastSync == nil {
		return SyncError
	}
	minutes := int(now.Sub(*s.LastSync).Minutes())
	switch {
	case minutes > s.SyncFrequency*4:
		return SyncError
	case minutes > s.SyncFrequency*2:
		return SyncWarning
	}
	return SyncSuccess
}

// SystemView is a HealthSystem with its display fields.
type SystemView struct {
	*HealthSystem
	TimeSinceSync string `json:"time_since_sync"`
	SyncStatus    string `json:"sync_status"`
	NextSyncIn    string `json:"next_sync_in"`
}

func NewSystemView(s *HealthSystem, now time.Time) SystemView {
	v := SystemView{HealthSystem: s, SyncStatus: s.SyncHealth(now), NextSyncIn: "N/A"}
	if s.LastSync != nil {
		v.TimeSinceSync = elapsed.Ago(now, *s.LastSync)
	} else {
		v.TimeSinceSync = "never synced"
	}
	if s.Status == StatusOnline {
		v.NextSyncIn = fmt.Sprintf("%d min", s.SyncFrequency)
	}
	return v
}

// ProbeResult is the outcome of a connectivity test against a system.
type ProbeResult struct {
	Connectivity   bool `json:"connection_test"`
	Authentication bool `json:"authentication_test"`
	DataAccess     bool `json:"data_access_test"`
	ResponseTimeMS int  `json:"response_time_ms"`
}

// Passed reports whether every probe succeeded.
func (p ProbeResult) Passed() bool {
	return p.Connectivity && p.Authentication && p.DataAccess
}

// Status is online when every probe passed, warning when at least one did
// and offline when none did.
func (p ProbeResult) Status() Status {
	switch {
	case p.Passed():
		return StatusOnline
	case p.Connectivity || p.Authentication || p.DataAccess:
		return StatusWarning
	}
	return StatusOffline
}

type SyncResult struct {
	Success       bool
	RecordsSynced int
}

type TestOutcome struct {
	SystemID       int64       `json:"system_id"`
	Results        ProbeResult `json:"test_results"`
	OverallSuccess bool        `json:"overall_success"`
	Status         Status      `json:"status"`
	Message        string      `json:"message"`
}

type SyncOutcome struct {
	SystemID      int64      `json:"system_id"`
	SyncSuccess   bool       `json:"sync_success"`
	RecordsSynced int        `json:"records_synced"`
	Status        Status     `json:"status"`
	Message       string     `json:"message"`
	LastSync      *time.Time `json:"last_sync"`
}

// StatusCounts tallies systems per status.
type StatusCounts struct {
	Total   int
	Online  int
	Warning int
	Offline int
}

type RecentSync struct {
	SystemName string    `json:"system_name"`
	SystemType string    `json:"system_type"`
	LastSync   time.Time `json:"last_sync"`
	Status     Status    `json:"status"`
}

type Overview struct {
	TotalSystems      int          `json:"total_systems"`
	OnlineSystems     int          `json:"online_systems"`
	WarningSystems    int          `json:"warning_systems"`
	OfflineSystems    int          `json:"offline_systems"`
	SystemsWithAlerts int          `json:"systems_with_alerts"`
	SuccessRate       float64      `json:"success_rate_percentage"`
	RecentSyncs       []RecentSync `json:"recent_syncs"`
}

type Details struct {
	System  SystemView              `json:"system"`
	Logs    []synthetic.SyncLog     `json:"logs"`
	Metrics synthetic.SystemMetrics `json:"metrics"`
}

type LogPage struct {
	Synthetic bool                `json:"synthetic"`
	Logs      []synthetic.SyncLog `json:"logs"`
	TotalLogs int                 `json:"total_logs"`
}
