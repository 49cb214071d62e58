package healthsystem

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Connector talks to a source system. The only implementation today is
// simulated; a real one would open the system's integration endpoint.
type Connector interface {
	TestConnection(ctx context.Context, s *HealthSystem) (ProbeResult, error)
	Sync(ctx context.Context, s *HealthSystem) (SyncResult, error)
}

// Success odds of the simulated probes.
const (
	connectivityOdds   = 0.75
	authenticationOdds = 2.0 / 3.0
	dataAccessOdds     = 0.75
	syncOdds           = 0.75
)

// SimulatedConnector produces demo outcomes from a random source.
type SimulatedConnector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedConnector uses src for every draw; nil seeds from the clock.
func NewSimulatedConnector(src rand.Source) *SimulatedConnector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &SimulatedConnector{rng: rand.New(src)}
}

func (c *SimulatedConnector) TestConnection(ctx context.Context, _ *HealthSystem) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return ProbeResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return ProbeResult{
		Connectivity:   c.rng.Float64() < connectivityOdds,
		Authentication: c.rng.Float64() < authenticationOdds,
		DataAccess:     c.rng.Float64() < dataAccessOdds,
		ResponseTimeMS: 50 + c.rng.Intn(951),
	}, nil
}

func (c *SimulatedConnector) Sync(ctx context.Context, _ *HealthSystem) (SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return SyncResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng.Float64() >= syncOdds {
		return SyncResult{}, nil
	}
	return SyncResult{Success: true, RecordsSynced: 10 + c.rng.Intn(191)}, nil
}
