package executor

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/computefleet/fleetd/pkg/models"
)

// StepResult reports one tick of execution progress for a running task
type StepResult struct {
	Delta  int    // progress points gained this tick
	Failed bool   // task hit an unrecoverable execution error
	Reason string // failure description, set when Failed
}

// Executor observes execution progress for running tasks. The scheduler
// polls it once per telemetry tick for every running task. A real
// system would dispatch payloads to the assigned node and report back
// over a transport; the simulated implementation stands in for that.
type Executor interface {
	Step(task *models.ComputeTask) StepResult
}

// SimulatedConfig tunes the simulated executor
type SimulatedConfig struct {
	MinStep       int     // smallest per-tick progress gain
	MaxStep       int     // largest per-tick progress gain
	FailureChance float64 // per-tick chance a running task fails
}

// DefaultSimulatedConfig returns the simulation defaults
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		MinStep:       5,
		MaxStep:       20,
		FailureChance: 0.02,
	}
}

// Simulated advances running tasks by a bounded random amount per tick
// and fails them with a small configured probability.
type Simulated struct {
	mu  sync.Mutex
	cfg SimulatedConfig
	rng *rand.Rand
}

// NewSimulated creates a simulated executor. rng may be seeded for
// reproducible runs.
func NewSimulated(cfg SimulatedConfig, rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if cfg.MaxStep < cfg.MinStep {
		cfg.MaxStep = cfg.MinStep
	}
	return &Simulated{cfg: cfg, rng: rng}
}

// Step reports one tick of simulated progress
func (e *Simulated) Step(task *models.ComputeTask) StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rng.Float64() < e.cfg.FailureChance {
		return StepResult{
			Failed: true,
			Reason: fmt.Sprintf("%s task aborted on node %s", task.Kind, task.NodeID),
		}
	}

	span := e.cfg.MaxStep - e.cfg.MinStep + 1
	return StepResult{Delta: e.cfg.MinStep + e.rng.Intn(span)}
}
