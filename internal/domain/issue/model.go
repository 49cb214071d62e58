package issue

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Type string

const (
	TypeDuplicate Type = "duplicate"
	TypeMissing   Type = "missing"
	TypeConflict  Type = "conflict"
	TypeFormat    Type = "format"
	TypeSyncError Type = "sync_error"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDuplicate, TypeMissing, TypeConflict, TypeFormat, TypeSyncError:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	_, ok := PriorityRank[p]
	return ok
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// PriorityRank orders issue listings: lower ranks come first. Priorities
// missing from the map sort after every known one.
var PriorityRank = map[Priority]int{
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

const unrankedPriority = 4

func rankOf(p Priority) int {
	if r, ok := PriorityRank[p]; ok {
		return r
	}
	return unrankedPriority
}

// priorityOrderSQL renders PriorityRank as a CASE expression over col.
func priorityOrderSQL(col string) string {
	prios := make([]Priority, 0, len(PriorityRank))
	for p := range PriorityRank {
		prios = append(prios, p)
	}
	sort.Slice(prios, func(i, j int) bool { return PriorityRank[prios[i]] < PriorityRank[prios[j]] })

	var b strings.Builder
	b.WriteString("CASE " + col)
	for _, p := range prios {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, PriorityRank[p])
	}
	fmt.Fprintf(&b, " ELSE %d END", unrankedPriority)
	return b.String()
}

// Issue is a data-quality problem detected on a patient's data or on a
// source system. A resolved issue always carries resolved_at and a
// non-negative resolution_time in minutes; other statuses carry neither.
type Issue struct {
	ID              int64      `json:"id"`
	PatientID       *int64     `json:"patient_id"`
	SystemID        int64      `json:"system_id"`
	IssueType       Type       `json:"issue_type"`
	Priority        Priority   `json:"priority"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	DetectedAt      *time.Time `json:"detected_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionTime  *int       `json:"resolution_time"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
}

// Row is an issue joined with the names of the system and patient it
// refers to. The names are nil when the referenced row is gone.
type Row struct {
	Issue
	SystemName  *string
	SystemType  *string
	PatientName *string
	PatientCode *string
}

const unknownSystem = "Unknown system"

// View is an issue as listed to clients.
type View struct {
	*Issue
	SystemName          string  `json:"system_name"`
	SystemType          *string `json:"system_type,omitempty"`
	PatientName         *string `json:"patient_name"`
	PatientCode         *string `json:"patient_id_display,omitempty"`
	TimeSinceDetection  *string `json:"time_since_detection,omitempty"`
	EstimatedResolution string  `json:"estimated_resolution,omitempty"`
}

var estimatedResolution = map[Type]string{
	TypeDuplicate: "4 hours",
	TypeMissing:   "6 hours",
	TypeConflict:  "2 hours",
	TypeFormat:    "1 hour",
}

// EstimatedResolution is the typical effort to fix an issue of type t.
func EstimatedResolution(t Type) string {
	if e, ok := estimatedResolution[t]; ok {
		return e
	}
	return "3 hours"
}

// Filter narrows issue listings. Zero values disable a filter.
type Filter struct {
	Status    Status
	Priority  Priority
	Type      Type
	PatientID int64
}

type Details struct {
	Issue   View     `json:"issue"`
	Similar []*Issue `json:"similar_issues"`
}

// Stats are the raw aggregates behind Metrics.
type Stats struct {
	Open                 int
	ResolvedSince        int
	DetectedSince        int
	AvgResolutionMinutes *float64
	ByPriority           map[Priority]int
	ByType               map[Type]int
}

type Metrics struct {
	TotalOpen            int              `json:"total_open_issues"`
	ResolvedThisMonth    int              `json:"resolved_this_month"`
	AvgResolutionHours   float64          `json:"average_resolution_time_hours"`
	ResolutionRate       float64          `json:"resolution_rate_percentage"`
	PriorityDistribution map[Priority]int `json:"priority_distribution"`
	TypeDistribution     map[Type]int     `json:"type_distribution"`
}

type HistoryItem struct {
	ID                    int64      `json:"id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	IssueType             Type       `json:"issue_type"`
	Priority              Priority   `json:"priority"`
	ResolvedAt            *time.Time `json:"resolved_at"`
	ResolutionTimeDisplay string     `json:"resolution_time_display"`
	ResolutionTimeMinutes *int       `json:"resolution_time_minutes"`
	ResolutionNotes       *string    `json:"resolution_notes,omitempty"`
	SystemName            string     `json:"system_name"`
}

// Wizard is a guided resolution procedure for some issue types.
type Wizard struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	EstimatedTime   string `json:"estimated_time"`
	Difficulty      string `json:"difficulty"`
	ApplicableTypes []Type `json:"applicable_types"`
}

var wizards = []Wizard{
	{
		ID:              "duplicate_patients",
		Title:           "Resolve duplicate patients",
		Description:     "Step-by-step guide to identify and merge duplicated patient records",
		Icon:            "🔧",
		EstimatedTime:   "30-60 minutes",
		Difficulty:      "medium",
		ApplicableTypes: []Type{TypeDuplicate},
	},
	{
		ID:              "sync_systems",
		Title:           "Restore system synchronization",
		Description:     "Automated procedure to re-establish connections between systems",
		Icon:            "🔄",
		EstimatedTime:   "15-30 minutes",
		Difficulty:      "easy",
		ApplicableTypes: []Type{TypeSyncError},
	},
	{
		ID:              "complete_fields",
		Title:           "Complete required fields",
		Description:     "Assistant for filling in missing critical data",
		Icon:            "📝",
		EstimatedTime:   "20-45 minutes",
		Difficulty:      "easy",
		ApplicableTypes: []Type{TypeMissing},
	},
	{
		ID:              "validate_consistency",
		Title:           "Consistency validation",
		Description:     "Tool to check and fix inconsistent data",
		Icon:            "🔍",
		EstimatedTime:   "45-90 minutes",
		Difficulty:      "hard",
		ApplicableTypes: []Type{TypeConflict, TypeFormat},
	},
}
