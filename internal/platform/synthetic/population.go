package synthetic

import (
	"fmt"
	"strings"
	"time"
)

// Demo population used by the seed command. The values are plausible but
// fictitious; nothing here is read on the request path.

var (
	Departments = []string{
		"Cardiology", "Laboratory", "Emergency", "Outpatient", "Inpatient",
		"Radiology", "Pharmacy", "ICU", "Pediatrics", "Neurology",
	}
	RecordTypes = []string{"consultation", "exam", "procedure", "prescription", "diagnosis"}
	IssueTypes  = []string{"duplicate", "missing", "conflict", "format", "sync_error"}
	Priorities  = []string{"high", "medium", "low"}

	firstNamesF = []string{"Ana", "Maria", "Juliana", "Fernanda", "Camila", "Patricia", "Beatriz", "Larissa", "Luiza", "Helena"}
	firstNamesM = []string{"Carlos", "Joao", "Ricardo", "Eduardo", "Roberto", "Bruno", "Lucas", "Pedro", "Rafael", "Gustavo"}
	lastNames   = []string{"Silva", "Santos", "Oliveira", "Pereira", "Costa", "Lima", "Alves", "Rocha", "Martins", "Souza", "Ferreira", "Dias"}
	doctors     = []string{"Dr. Ana Silva", "Dr. Carlos Santos", "Dr. Maria Oliveira", "Dr. Joao Pereira", "Dr. Fernanda Costa", "Dr. Ricardo Lima"}
	streets     = []string{"Rua das Flores", "Avenida Paulista", "Rua Augusta", "Rua da Consolacao", "Avenida Brasil"}
)

type SystemSeed struct {
	Name          string
	SystemType    string
	Description   string
	Status        string
	LastSync      time.Time
	SyncFrequency int
}

type PatientSeed struct {
	PatientID string
	Name      string
	CPF       string
	BirthDate time.Time
	Gender    string
	Phone     string
	Email     string
	Address   string
}

type RecordSeed struct {
	RecordType   string
	Description  string
	DoctorName   string
	Department   string
	SystemSource string
	RecordDate   time.Time
}

type IssueSeed struct {
	IssueType   string
	Priority    string
	Title       string
	Description string
	DetectedAt  time.Time

	// ResolvedAfter is the resolution time in minutes, 0 for open issues.
	ResolvedAfter int
}

type MetricSeed struct {
	Name       string
	Value      float64
	Unit       string
	Department string
}

var systemCatalog = []struct{ name, typ, desc string }{
	{"HIS Main", "HIS", "Main hospital information system"},
	{"Laboratory System", "LIS", "Laboratory information system"},
	{"PACS Imaging", "PACS", "Picture archiving and communication system"},
	{"Billing System", "Billing", "Billing and claims"},
	{"Hospital Pharmacy", "Pharmacy", "Pharmacy management"},
	{"Outpatient System", "Ambulatory", "Outpatient clinic management"},
	{"Emergency System", "Emergency", "Emergency department"},
	{"ICU System", "ICU", "Intensive care unit"},
}

func (r *Random) pick(list []string) string {
	return list[r.intn(0, len(list)-1)]
}

// Systems returns the eight catalog systems with a status drawn 70/20/10
// online/warning/offline and a last sync consistent with that status.
func (r *Random) Systems(now time.Time) []SystemSeed {
	out := make([]SystemSeed, 0, len(systemCatalog))
	for _, c := range systemCatalog {
		s := SystemSeed{
			Name:          c.name,
			SystemType:    c.typ,
			Description:   c.desc,
			SyncFrequency: []int{15, 30, 60, 120}[r.intn(0, 3)],
		}
		switch p := r.uniform(0, 1); {
		case p < 0.7:
			s.Status = "online"
			s.LastSync = now.Add(-time.Duration(r.intn(1, 60)) * time.Minute)
		case p < 0.9:
			s.Status = "warning"
			s.LastSync = now.Add(-time.Duration(r.intn(1, 6)) * time.Hour)
		default:
			s.Status = "offline"
			s.LastSync = now.AddDate(0, 0, -r.intn(1, 3))
		}
		out = append(out, s)
	}
	return out
}

// Patient returns the index-th demo patient. patient_id is derived from index
// so repeated seeding never collides.
func (r *Random) Patient(index int, now time.Time) PatientSeed {
	gender := "M"
	first := r.pick(firstNamesM)
	if r.chance(0.5) {
		gender = "F"
		first = r.pick(firstNamesF)
	}
	last := r.pick(lastNames)
	age := r.intn(18, 90)
	return PatientSeed{
		PatientID: fmt.Sprintf("PAC%05d", index),
		Name:      first + " " + last,
		CPF:       r.cpf(),
		BirthDate: time.Date(now.Year()-age, time.Month(r.intn(1, 12)), r.intn(1, 28), 0, 0, 0, 0, time.UTC),
		Gender:    gender,
		Phone:     fmt.Sprintf("+55 11 9%d%03d-%04d", r.intn(6, 9), r.intn(0, 999), r.intn(0, 9999)),
		Email:     fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), index),
		Address:   fmt.Sprintf("%s, %d - Sao Paulo, SP", r.pick(streets), r.intn(1, 2000)),
	}
}

// cpf returns a random CPF with valid check digits, formatted 000.000.000-00.
func (r *Random) cpf() string {
	d := make([]int, 11)
	for i := 0; i < 9; i++ {
		d[i] = r.intn(0, 9)
	}
	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += d[i] * (pos + 1 - i)
		}
		check := sum * 10 % 11
		if check == 10 {
			check = 0
		}
		d[pos] = check
	}
	return fmt.Sprintf("%d%d%d.%d%d%d.%d%d%d-%d%d", d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8], d[9], d[10])
}

var recordDescriptions = map[string][]string{
	"consultation": {"Routine consultation", "Follow-up consultation", "Specialist consultation"},
	"exam":         {"Blood test", "Urinalysis", "X-ray", "CT scan", "MRI"},
	"procedure":    {"Surgical procedure", "Diagnostic procedure", "Therapeutic procedure"},
	"prescription": {"Antibiotic prescription", "Analgesic prescription", "Anti-inflammatory prescription"},
	"diagnosis":    {"Diagnosis: hypertension", "Diagnosis: diabetes", "Diagnosis: pneumonia", "Diagnosis: gastritis"},
}

// Record returns a medical record dated within the last two years.
func (r *Random) Record(now time.Time) RecordSeed {
	typ := r.pick(RecordTypes)
	return RecordSeed{
		RecordType:   typ,
		Description:  r.pick(recordDescriptions[typ]),
		DoctorName:   r.pick(doctors),
		Department:   r.pick(Departments),
		SystemSource: systemCatalog[r.intn(0, len(systemCatalog)-1)].name,
		RecordDate:   now.Add(-time.Duration(r.intn(0, 2*365*24)) * time.Hour),
	}
}

var issueTemplates = map[string]struct{ titles, descriptions []string }{
	"duplicate": {
		[]string{"Duplicate patient records", "Patient with multiple ids", "Duplicate registration in HIS"},
		[]string{"Patient has duplicate records across systems", "Several ids found for the same CPF"},
	},
	"missing": {
		[]string{"Required fields missing", "Critical data not filled in", "Incomplete record"},
		[]string{"Required fields were left empty", "Contact information unavailable"},
	},
	"conflict": {
		[]string{"Conflicting data between systems", "Inconsistency detected"},
		[]string{"Weight recorded with different values across systems", "Birth date differs between systems"},
	},
	"format": {
		[]string{"Format inconsistency", "Invalid data format"},
		[]string{"Phone numbers stored in different formats", "CPF in invalid format", "Dates in incompatible formats"},
	},
	"sync_error": {
		[]string{"Synchronization failure", "Connectivity error"},
		[]string{"System has not synchronized for several hours", "Timeout while synchronizing data"},
	},
}

// Issue returns an issue detected within the last 30 days; one in ten comes
// back already resolved, 30 to 480 minutes after detection.
func (r *Random) Issue(now time.Time) IssueSeed {
	typ := r.pick(IssueTypes)
	tmpl := issueTemplates[typ]
	detected := now.Add(-time.Duration(r.intn(1, 30*24*60)) * time.Minute)
	seed := IssueSeed{
		IssueType:   typ,
		Priority:    r.pick(Priorities),
		Title:       r.pick(tmpl.titles),
		Description: r.pick(tmpl.descriptions),
		DetectedAt:  detected,
	}
	if r.chance(0.1) {
		after := r.intn(30, 480)
		if detected.Add(time.Duration(after) * time.Minute).Before(now) {
			seed.ResolvedAfter = after
		}
	}
	return seed
}

// Metric returns an observation for name, optionally scoped to department.
func (r *Random) Metric(name, department string) MetricSeed {
	m := MetricSeed{Name: name, Department: department, Unit: "count"}
	switch name {
	case "completeness_rate":
		m.Value, m.Unit = round1(r.uniform(70, 95)), "%"
	case "data_quality_score":
		m.Value, m.Unit = round1(r.uniform(75, 90)), "%"
	case "resolution_time":
		m.Value, m.Unit = round1(r.uniform(1, 6)), "hours"
	case "system_availability":
		m.Value, m.Unit = round1(r.uniform(95, 99.9)), "%"
	case "issues_count":
		m.Value = float64(r.intn(5, 50))
	default:
		m.Value = round1(r.uniform(0, 100))
	}
	return m
}
