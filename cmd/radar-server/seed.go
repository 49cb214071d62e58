package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/domain/dashboard"
	"github.com/healthgraph/radar/internal/domain/healthsystem"
	"github.com/healthgraph/radar/internal/domain/issue"
	"github.com/healthgraph/radar/internal/domain/patient"
	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

var seedMetricNames = []string{
	dashboard.MetricCompletenessRate,
	"data_quality_score",
	"resolution_time",
	"system_availability",
	"issues_count",
}

type seedOptions struct {
	Patients     int
	MaxRecords   int
	Issues       int
	Observations int
}

type seedResult struct {
	Systems      int
	Patients     int
	Records      int
	Issues       int
	Resolved     int
	Observations int
}

// seeder writes a synthetic population through the domain services, so every
// row passes the same validation and invariants as API traffic.
type seeder struct {
	systems   *healthsystem.Service
	patients  *patient.Service
	issues    *issue.Service
	dashboard *dashboard.Service
	rnd       *synthetic.Random
	rng       *rand.Rand
	logger    zerolog.Logger
	now       func() time.Time
}

func newSeeder(a *app) *seeder {
	seed := a.cfg.SyntheticSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &seeder{
		systems:   a.systems,
		patients:  a.patients,
		issues:    a.issues,
		dashboard: a.dashboard,
		rnd:       a.synth,
		rng:       rand.New(rand.NewSource(seed)),
		logger:    a.logger.With().Str("component", "seed").Logger(),
		now:       time.Now,
	}
}

func (s *seeder) run(ctx context.Context, opts seedOptions) (*seedResult, error) {
	now := s.now().UTC()
	res := &seedResult{}

	systemIDs, err := s.seedSystems(ctx, now, res)
	if err != nil {
		return nil, err
	}
	patientIDs, err := s.seedPatients(ctx, now, opts, res)
	if err != nil {
		return nil, err
	}
	if err := s.seedIssues(ctx, now, opts.Issues, systemIDs, patientIDs, res); err != nil {
		return nil, err
	}
	if err := s.seedObservations(ctx, now, opts.Observations, res); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("systems", res.Systems).
		Int("patients", res.Patients).
		Int("records", res.Records).
		Int("issues", res.Issues).
		Int("observations", res.Observations).
		Msg("seed complete")
	return res, nil
}

// seedSystems creates the system catalog on an empty database and reuses the
// existing systems otherwise.
func (s *seeder) seedSystems(ctx context.Context, now time.Time, res *seedResult) ([]int64, error) {
	existing, err := s.systems.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(existing))
	for _, v := range existing {
		ids = append(ids, v.ID)
	}
	if len(ids) > 0 {
		s.logger.Info().Int("systems", len(ids)).Msg("systems already present, skipping catalog")
		return ids, nil
	}

	for _, seed := range s.rnd.Systems(now) {
		desc, lastSync := seed.Description, seed.LastSync
		sys := &healthsystem.HealthSystem{
			Name:          seed.Name,
			SystemType:    seed.SystemType,
			Status:        healthsystem.Status(seed.Status),
			LastSync:      &lastSync,
			SyncFrequency: seed.SyncFrequency,
			Description:   &desc,
		}
		if err := s.systems.Create(ctx, sys); err != nil {
			return nil, err
		}
		ids = append(ids, sys.ID)
		res.Systems++
	}
	return ids, nil
}

// seedPatients numbers new patients after the current total so patient_id
// stays unique across runs. A CPF collision or a rejected draw skips that
// patient.
func (s *seeder) seedPatients(ctx context.Context, now time.Time, opts seedOptions, res *seedResult) ([]int64, error) {
	_, meta, err := s.patients.List(ctx, "", pagination.New(1, 1))
	if err != nil {
		return nil, err
	}
	start := meta.Total

	ids := make([]int64, 0, opts.Patients)
	for i := 1; i <= opts.Patients; i++ {
		seed := s.rnd.Patient(start+i, now)
		phone, email, address := seed.Phone, seed.Email, seed.Address
		p := &patient.Patient{
			PatientID: seed.PatientID,
			Name:      seed.Name,
			CPF:       seed.CPF,
			BirthDate: patient.NewDate(seed.BirthDate),
			Gender:    patient.Gender(seed.Gender),
			Phone:     &phone,
			Email:     &email,
			Address:   &address,
		}
		if err := s.patients.Create(ctx, p); err != nil {
			if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindValidation) {
				s.logger.Warn().Str("patient_id", seed.PatientID).Err(err).Msg("skipping patient")
				continue
			}
			return nil, err
		}
		ids = append(ids, p.ID)
		res.Patients++

		for n := s.rng.Intn(max(opts.MaxRecords, 0) + 1); n > 0; n-- {
			rec := s.rnd.Record(now)
			doctor, dept := rec.DoctorName, rec.Department
			m := &patient.MedicalRecord{
				PatientID:    p.ID,
				RecordType:   patient.RecordType(rec.RecordType),
				Description:  rec.Description,
				DoctorName:   &doctor,
				Department:   &dept,
				SystemSource: rec.SystemSource,
				RecordDate:   rec.RecordDate,
			}
			if err := s.patients.AddRecord(ctx, m); err != nil {
				return nil, err
			}
			res.Records++
		}
	}
	return ids, nil
}

// seedIssues resolves the seeds that come back resolved through the issue
// service with its clock set to the resolution instant, so resolution_time
// is computed the normal way.
func (s *seeder) seedIssues(ctx context.Context, now time.Time, count int, systemIDs, patientIDs []int64, res *seedResult) error {
	if len(systemIDs) == 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		seed := s.rnd.Issue(now)
		detected := seed.DetectedAt
		iss := &issue.Issue{
			SystemID:    systemIDs[s.rng.Intn(len(systemIDs))],
			IssueType:   issue.Type(seed.IssueType),
			Priority:    issue.Priority(seed.Priority),
			Title:       seed.Title,
			Description: seed.Description,
			DetectedAt:  &detected,
		}
		if iss.IssueType != issue.TypeSyncError && len(patientIDs) > 0 {
			pid := patientIDs[s.rng.Intn(len(patientIDs))]
			iss.PatientID = &pid
		}
		if err := s.issues.Create(ctx, iss); err != nil {
			return err
		}
		res.Issues++

		if seed.ResolvedAfter > 0 {
			at := detected.Add(time.Duration(seed.ResolvedAfter) * time.Minute)
			s.issues.SetClock(func() time.Time { return at })
			_, err := s.issues.Resolve(ctx, iss.ID, "Resolved during data cleanup")
			s.issues.SetClock(time.Now)
			if err != nil {
				return err
			}
			res.Resolved++
		}
	}
	return nil
}

// seedObservations always records a fresh hospital-wide completeness sample
// first so the dashboard has a measured figure to show.
func (s *seeder) seedObservations(ctx context.Context, now time.Time, count int, res *seedResult) error {
	for i := 0; i < count; i++ {
		name, dept := seedMetricNames[i%len(seedMetricNames)], ""
		at := now
		if i > 0 {
			at = now.Add(-time.Duration(s.rng.Intn(30*24)) * time.Hour)
			if s.rng.Intn(2) == 0 {
				dept = synthetic.Departments[s.rng.Intn(len(synthetic.Departments))]
			}
		}
		m := s.rnd.Metric(name, dept)
		unit := m.Unit
		o := &dashboard.Observation{
			MetricName:   m.Name,
			MetricValue:  m.Value,
			MetricUnit:   &unit,
			CalculatedAt: at,
		}
		if m.Department != "" {
			d := m.Department
			o.Department = &d
		}
		if err := s.dashboard.RecordObservation(ctx, o); err != nil {
			return err
		}
		res.Observations++
	}
	return nil
}
