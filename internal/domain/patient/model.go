package patient

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/healthgraph/radar/internal/domain/issue"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Patient is never hard-deleted.
type Patient struct {
	ID        int64     `json:"id"`
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	BirthDate Date      `json:"birth_date"`
	Gender    Gender    `json:"gender"`
	Phone     *string   `json:"phone"`
	Email     *string   `json:"email"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RecordType string

const (
	RecordConsultation RecordType = "consultation"
	RecordExam         RecordType = "exam"
	RecordProcedure    RecordType = "procedure"
	RecordPrescription RecordType = "prescription"
	RecordDiagnosis    RecordType = "diagnosis"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordConsultation, RecordExam, RecordProcedure, RecordPrescription, RecordDiagnosis:
		return true
	}
	return false
}

// MedicalRecord is immutable once written. RecordDate is when the clinical
// event happened, CreatedAt when it reached this database.
type MedicalRecord struct {
	ID           int64      `json:"id"`
	PatientID    int64      `json:"patient_id"`
	RecordType   RecordType `json:"record_type"`
	Description  string     `json:"description"`
	DoctorName   *string    `json:"doctor_name"`
	Department   *string    `json:"department"`
	SystemSource string     `json:"system_source"`
	RecordDate   time.Time  `json:"record_date"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Summary is a patient with the counts shown in listings.
type Summary struct {
	*Patient
	TotalRecords           int       `json:"total_records"`
	OpenIssues             int       `json:"quality_issues"`
	CompletenessPercentage int       `json:"completeness_percentage"`
	LastUpdate             time.Time `json:"last_update"`
}

// SearchFilter narrows the patient search. HasIssues nil disables the
// open-issue filter.
type SearchFilter struct {
	Query      string
	Department string
	HasIssues  *bool
}

const SearchLimit = 50

type QualityIndicators struct {
	Completeness int `json:"completeness"`
	Consistency  int `json:"consistency"`
	TotalRecords int `json:"total_records"`
	OpenIssues   int `json:"open_issues"`
}

type Details struct {
	Patient           *Patient             `json:"patient"`
	MedicalRecords    []*MedicalRecord     `json:"medical_records"`
	QualityIssues     []*issue.Issue       `json:"quality_issues"`
	QualityIndicators QualityIndicators    `json:"quality_indicators"`
	SystemsLastUpdate map[string]time.Time `json:"systems_last_update"`
	DataFragments     []string             `json:"data_fragments"`
}

// Timeline event kinds.
const (
	EventMedicalRecord = "medical_record"
	EventQualityIssue  = "quality_issue"
)

type TimelineEvent struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Date         *time.Time     `json:"date"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Doctor       *string        `json:"doctor,omitempty"`
	SystemSource string         `json:"system_source,omitempty"`
	Category     RecordType     `json:"category,omitempty"`
	Priority     issue.Priority `json:"priority,omitempty"`
	Status       issue.Status   `json:"status,omitempty"`
	IssueType    issue.Type     `json:"issue_type,omitempty"`
}

type Timeline struct {
	PatientID   int64           `json:"patient_id"`
	PatientName string          `json:"patient_name"`
	Events      []TimelineEvent `json:"timeline"`
}

type Recommendation struct {
	IssueID        int64          `json:"id"`
	Priority       issue.Priority `json:"priority"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Impact         string         `json:"impact"`
	EstimatedTime  string         `json:"estimated_time"`
	ActionType     issue.Type     `json:"action_type"`
	SystemInvolved string         `json:"system_involved"`
}
