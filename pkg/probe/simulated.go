package probe

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/computefleet/fleetd/pkg/models"
)

// SimulatedProbeConfig tunes the randomized probe
type SimulatedProbeConfig struct {
	DiscoveryChance float64 // probability a tick surfaces a new node
	MaxNodes        int     // stop inventing nodes past this fleet size (0 = unlimited)
	GPUChance       float64 // probability a discovered node carries a GPU
}

// DefaultSimulatedProbeConfig returns the simulation defaults
func DefaultSimulatedProbeConfig() SimulatedProbeConfig {
	return SimulatedProbeConfig{
		DiscoveryChance: 0.35,
		MaxNodes:        12,
		GPUChance:       0.3,
	}
}

// SimulatedProbe stands in for a real discovery wire protocol. It
// surfaces randomly generated remote and cloud nodes at a configured
// rate. A real deployment swaps this for a probe backed by an actual
// inventory service; the scheduler core never knows the difference.
type SimulatedProbe struct {
	mu      sync.Mutex
	cfg     SimulatedProbeConfig
	rng     *rand.Rand
	counter int
}

// NewSimulatedProbe creates a randomized probe. rng may be seeded for
// reproducible fleets.
func NewSimulatedProbe(cfg SimulatedProbeConfig, rng *rand.Rand) *SimulatedProbe {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &SimulatedProbe{cfg: cfg, rng: rng}
}

var (
	regionTags = []string{"us-east", "us-west", "eu-central", "ap-south", "on-prem"}
	gpuModels  = []struct {
		name     string
		memoryGB float64
		cores    int
	}{
		{"NVIDIA RTX 4090", 24, 16384},
		{"NVIDIA A100", 80, 6912},
		{"NVIDIA L4", 24, 7424},
		{"NVIDIA T4", 16, 2560},
	}
	coreOptions = []int{4, 8, 16, 32, 64}
	memOptions  = []float64{16, 32, 64, 128, 256}
)

// Discover returns zero or one newly generated node per call
func (p *SimulatedProbe) Discover(_ context.Context, knownIDs []string) ([]models.NodeDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxNodes > 0 && len(knownIDs) >= p.cfg.MaxNodes {
		return nil, nil
	}
	if p.rng.Float64() >= p.cfg.DiscoveryChance {
		return nil, nil
	}

	p.counter++
	kind := models.NodeKindRemote
	if p.rng.Float64() < 0.5 {
		kind = models.NodeKindCloud
	}

	caps := models.NodeCapabilities{
		CPUCores:    coreOptions[p.rng.Intn(len(coreOptions))],
		CPUSpeedGHz: 2.0 + p.rng.Float64()*2.0,
		MemoryGB:    memOptions[p.rng.Intn(len(memOptions))],
		DiskGB:      float64(250 * (1 + p.rng.Intn(8))),
	}
	if p.rng.Float64() < p.cfg.GPUChance {
		model := gpuModels[p.rng.Intn(len(gpuModels))]
		caps.GPU = &models.GPUSpec{
			Name:     model.name,
			MemoryGB: model.memoryGB,
			Cores:    model.cores,
		}
	}

	desc := models.NodeDescriptor{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("%s-node-%02d", kind, p.counter),
		Kind:         kind,
		Capabilities: caps,
		Location:     regionTags[p.rng.Intn(len(regionTags))],
	}
	return []models.NodeDescriptor{desc}, nil
}
