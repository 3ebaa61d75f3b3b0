package telemetry

import (
	"math/rand"
	"sync"

	"github.com/computefleet/fleetd/pkg/models"
)

// Source supplies node telemetry to the scheduler. The simulated
// implementation below is the default; a real deployment swaps in one
// backed by node-agent polling without touching the scheduler core.
type Source interface {
	// Sample produces fresh performance metrics for a node that was
	// just discovered or just recovered.
	Sample() models.NodePerformance

	// Refresh advances a node's metrics one telemetry tick. Values stay
	// clamped to their domains: load averages in [0,1], percentages in
	// [0,100].
	Refresh(prev models.NodePerformance) models.NodePerformance

	// NextStatus resolves probabilistic health flips for one tick.
	// Offline nodes may recover; online nodes may fail. The scheduler
	// never calls this for the local node.
	NextStatus(current models.NodeStatus) models.NodeStatus
}

// SimulatedConfig tunes the simulated source
type SimulatedConfig struct {
	FailureChance  float64 // per-tick chance an online node drops offline
	RecoveryChance float64 // per-tick chance an offline node comes back
	LoadStep       float64 // max per-tick delta for load averages
	UsageStep      float64 // max per-tick delta for usage percentages
}

// DefaultSimulatedConfig returns the simulation defaults
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		FailureChance:  0.02,
		RecoveryChance: 0.3,
		LoadStep:       0.1,
		UsageStep:      10,
	}
}

// Simulated drives node health and performance with a bounded random
// walk: each metric moves by a small symmetric delta per tick and is
// clamped to its valid domain.
type Simulated struct {
	mu  sync.Mutex
	cfg SimulatedConfig
	rng *rand.Rand
}

// NewSimulated creates a simulated source. rng may be seeded for
// reproducible runs.
func NewSimulated(cfg SimulatedConfig, rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Simulated{cfg: cfg, rng: rng}
}

// Sample produces fresh randomized metrics
func (s *Simulated) Sample() models.NodePerformance {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.NodePerformance{
		LoadAverage: [3]float64{
			s.rng.Float64() * 0.7,
			s.rng.Float64() * 0.7,
			s.rng.Float64() * 0.7,
		},
		CPUUsagePct:    s.rng.Float64() * 60,
		MemoryUsagePct: 20 + s.rng.Float64()*50,
		GPUUsagePct:    s.rng.Float64() * 40,
	}
}

// Refresh walks each metric by a bounded symmetric step
func (s *Simulated) Refresh(prev models.NodePerformance) models.NodePerformance {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := prev
	for i := range next.LoadAverage {
		next.LoadAverage[i] = clamp(prev.LoadAverage[i]+s.step(s.cfg.LoadStep), 0, 1)
	}
	next.CPUUsagePct = clamp(prev.CPUUsagePct+s.step(s.cfg.UsageStep), 0, 100)
	next.MemoryUsagePct = clamp(prev.MemoryUsagePct+s.step(s.cfg.UsageStep), 0, 100)
	next.GPUUsagePct = clamp(prev.GPUUsagePct+s.step(s.cfg.UsageStep), 0, 100)
	return next
}

// NextStatus flips health with the configured probabilities
func (s *Simulated) NextStatus(current models.NodeStatus) models.NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch current {
	case models.NodeStatusOffline:
		if s.rng.Float64() < s.cfg.RecoveryChance {
			return models.NodeStatusOnline
		}
	case models.NodeStatusOnline, models.NodeStatusBusy:
		if s.rng.Float64() < s.cfg.FailureChance {
			return models.NodeStatusOffline
		}
	}
	return current
}

// step returns a symmetric delta in [-max, max]
func (s *Simulated) step(max float64) float64 {
	return (s.rng.Float64()*2 - 1) * max
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
