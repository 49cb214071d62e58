package healthsystem

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/internal/platform/events"
	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/pagination"
)

const (
	recentSyncsLimit = 5
	defaultLogHours  = 24
	maxLogHours      = 24 * 7

	// LogsPerPage is the default page size of the sync log listing.
	LogsPerPage = 50

	maxNameLen = 100
	maxTypeLen = 50
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	conn   Connector
	synth  synthetic.Provider
	pub    events.Publisher
	logger zerolog.Logger
	now    func() time.Time

	probes *prometheus.CounterVec
	syncs  *prometheus.CounterVec
}

func NewService(repo Repository, tx db.TxRunner, conn Connector, synth synthetic.Provider) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		conn:   conn,
		synth:  synth,
		pub:    events.Nop{},
		logger: zerolog.Nop(),
		now:    time.Now,
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_system_probes_total",
			Help: "Connection tests run against source systems, by resulting status",
		}, []string{"result"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_system_syncs_total",
			Help: "Forced synchronizations, by outcome",
		}, []string{"result"}),
	}
}

// SetPublisher attaches the domain event publisher.
func (s *Service) SetPublisher(p events.Publisher) { s.pub = p }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// RegisterMetrics exposes the service counters on reg.
func (s *Service) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(s.probes, s.syncs)
}

func (s *Service) List(ctx context.Context) ([]SystemView, error) {
	systems, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]SystemView, 0, len(systems))
	for _, sys := range systems {
		views = append(views, NewSystemView(sys, now))
	}
	return views, nil
}

func (s *Service) Create(ctx context.Context, sys *HealthSystem) error {
	sys.Name = strings.TrimSpace(sys.Name)
	sys.SystemType = strings.TrimSpace(sys.SystemType)
	if sys.Name == "" {
		return apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(sys.Name) > maxNameLen {
		return apperr.Validation("name must be at most %d characters", maxNameLen)
	}
	if sys.SystemType == "" {
		return apperr.Validation("system_type is required")
	}
	if utf8.RuneCountInString(sys.SystemType) > maxTypeLen {
		return apperr.Validation("system_type must be at most %d characters", maxTypeLen)
	}
	if sys.Status == "" {
		sys.Status = StatusOnline
	}
	if !sys.Status.Valid() {
		return apperr.Validation("invalid status %q", sys.Status)
	}
	if sys.SyncFrequency == 0 {
		sys.SyncFrequency = DefaultSyncFrequency
	}
	if sys.SyncFrequency < 0 {
		return apperr.Validation("sync_frequency must be positive")
	}
	return s.repo.Create(ctx, sys)
}

func (s *Service) Get(ctx context.Context, id int64) (*HealthSystem, error) {
	return s.repo.GetByID(ctx, id)
}

// Details returns the system together with simulated sync logs and metrics.
func (s *Service) Details(ctx context.Context, id int64) (*Details, error) {
	sys, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &Details{
		System:  NewSystemView(sys, now),
		Logs:    s.synth.SystemLogs(sys.Ref(), now),
		Metrics: s.synth.SystemMetrics(),
	}, nil
}

// TestConnection probes the system and moves it to the status the probes
// imply. A fully successful probe also counts as a sync.
func (s *Service) TestConnection(ctx context.Context, id int64) (*TestOutcome, error) {
	var (
		out  *TestOutcome
		prev Status
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sys, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		prev = sys.Status

		probe, err := s.conn.TestConnection(ctx, sys)
		if err != nil {
			return apperr.Internal(err, "connection test failed")
		}
		status := probe.Status()

		var lastSync *time.Time
		if probe.Passed() {
			now := s.now().UTC()
			lastSync = &now
		}
		if err := s.repo.UpdateStatus(ctx, id, status, lastSync); err != nil {
			return err
		}

		out = &TestOutcome{
			SystemID:       id,
			Results:        probe,
			OverallSuccess: probe.Passed(),
			Status:         status,
			Message:        "connectivity problems detected",
		}
		if probe.Passed() {
			out.Message = "connection test completed successfully"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.probes.WithLabelValues(string(out.Status)).Inc()
	s.statusChanged(ctx, id, prev, out.Status)
	return out, nil
}

// ForceSync runs an immediate synchronization. Offline systems are refused
// and left untouched.
func (s *Service) ForceSync(ctx context.Context, id int64) (*SyncOutcome, error) {
	var (
		out  *SyncOutcome
		prev Status
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sys, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sys.Status == StatusOffline {
			return apperr.InvalidState("system is offline and cannot be synchronized")
		}
		prev = sys.Status

		res, err := s.conn.Sync(ctx, sys)
		if err != nil {
			return apperr.Internal(err, "synchronization failed")
		}

		out = &SyncOutcome{
			SystemID: id,
			Status:   StatusWarning,
			LastSync: sys.LastSync,
			Message:  "synchronization failed, check the system connectivity",
		}
		var synced *time.Time
		if res.Success {
			now := s.now().UTC()
			synced = &now
			out.SyncSuccess = true
			out.RecordsSynced = res.RecordsSynced
			out.Status = StatusOnline
			out.LastSync = synced
			out.Message = "synchronization completed, " + strconv.Itoa(res.RecordsSynced) + " records processed"
		}
		return s.repo.UpdateStatus(ctx, id, out.Status, synced)
	})
	if err != nil {
		return nil, err
	}

	result := "success"
	if !out.SyncSuccess {
		result = "failure"
	}
	s.syncs.WithLabelValues(result).Inc()
	s.statusChanged(ctx, id, prev, out.Status)
	return out, nil
}

func (s *Service) statusChanged(ctx context.Context, id int64, from, to Status) {
	if from == to {
		return
	}
	s.logger.Info().Int64("system_id", id).Str("from", string(from)).Str("to", string(to)).Msg("health system status changed")
	s.pub.Publish(ctx, events.New(events.SystemStatusChanged, strconv.FormatInt(id, 10), map[string]interface{}{
		"system_id": id,
		"from":      from,
		"to":        to,
	}))
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentlySynced(ctx, recentSyncsLimit)
	if err != nil {
		return nil, err
	}

	ov := &Overview{
		TotalSystems:      counts.Total,
		OnlineSystems:     counts.Online,
		WarningSystems:    counts.Warning,
		OfflineSystems:    counts.Offline,
		SystemsWithAlerts: counts.Warning + counts.Offline,
		RecentSyncs:       make([]RecentSync, 0, len(recent)),
	}
	if counts.Total > 0 {
		ov.SuccessRate = math.Round(float64(counts.Online)/float64(counts.Total)*1000) / 10
	}
	for _, sys := range recent {
		ov.RecentSyncs = append(ov.RecentSyncs, RecentSync{
			SystemName: sys.Name,
			SystemType: sys.SystemType,
			LastSync:   *sys.LastSync,
			Status:     sys.Status,
		})
	}
	return ov, nil
}

// Logs returns one page of simulated sync logs for the last hours, newest
// first, for one system when systemID is set or for all of them otherwise.
func (s *Service) Logs(ctx context.Context, hours int, systemID int64, p pagination.Params) (*LogPage, *pagination.Meta, error) {
	if hours < 1 || hours > maxLogHours {
		return nil, nil, apperr.Validation("hours must be between 1 and %d", maxLogHours)
	}

	var systems []*HealthSystem
	if systemID != 0 {
		sys, err := s.repo.GetByID(ctx, systemID)
		if err != nil {
			return nil, nil, err
		}
		systems = []*HealthSystem{sys}
	} else {
		var err error
		if systems, err = s.repo.List(ctx); err != nil {
			return nil, nil, err
		}
	}

	refs := make([]synthetic.SystemRef, 0, len(systems))
	for _, sys := range systems {
		refs = append(refs, sys.Ref())
	}
	logs := s.synth.SyncLogs(refs, hours, s.now())
	page := &LogPage{Synthetic: true, Logs: pagination.Slice(logs, p), TotalLogs: len(logs)}
	return page, pagination.NewMeta(p, len(logs)), nil
}

func (s *Service) Mappings() []synthetic.FieldMapping {
	return s.synth.FieldMappings(s.now())
}
