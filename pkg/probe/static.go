package probe

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/computefleet/fleetd/pkg/models"
)

// Inventory is the on-disk shape of a static fleet inventory file
type Inventory struct {
	Nodes []InventoryNode `yaml:"nodes"`
}

// InventoryNode declares one pre-known node in the inventory
type InventoryNode struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"`
	Location string  `yaml:"location"`
	Cores    int     `yaml:"cpu_cores"`
	SpeedGHz float64 `yaml:"cpu_speed_ghz"`
	MemoryGB float64 `yaml:"memory_gb"`
	DiskGB   float64 `yaml:"disk_gb"`
	GPU      *struct {
		Name     string  `yaml:"name"`
		MemoryGB float64 `yaml:"memory_gb"`
		Cores    int     `yaml:"cores"`
	} `yaml:"gpu"`
}

// StaticProbe serves nodes declared in a YAML inventory file through
// the NodeProbe contract. Discovery picks them up on its first tick and
// they stay invisible to re-discovery afterwards.
type StaticProbe struct {
	nodes []models.NodeDescriptor
}

// NewStaticProbe loads the inventory at path
func NewStaticProbe(path string) (*StaticProbe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory %s: %w", path, err)
	}

	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}

	probe := &StaticProbe{}
	for i, n := range inv.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("inventory %s: node %d has no id", path, i)
		}
		kind := models.NodeKind(n.Kind)
		if kind != models.NodeKindRemote && kind != models.NodeKindCloud {
			return nil, fmt.Errorf("inventory %s: node %s has invalid kind %q", path, n.ID, n.Kind)
		}

		desc := models.NodeDescriptor{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     kind,
			Location: n.Location,
			Capabilities: models.NodeCapabilities{
				CPUCores:    n.Cores,
				CPUSpeedGHz: n.SpeedGHz,
				MemoryGB:    n.MemoryGB,
				DiskGB:      n.DiskGB,
			},
		}
		if n.GPU != nil {
			desc.Capabilities.GPU = &models.GPUSpec{
				Name:     n.GPU.Name,
				MemoryGB: n.GPU.MemoryGB,
				Cores:    n.GPU.Cores,
			}
		}
		probe.nodes = append(probe.nodes, desc)
	}
	return probe, nil
}

// Discover returns inventory nodes not yet known to the registry
func (p *StaticProbe) Discover(_ context.Context, knownIDs []string) ([]models.NodeDescriptor, error) {
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	var fresh []models.NodeDescriptor
	for _, desc := range p.nodes {
		if !known[desc.ID] {
			fresh = append(fresh, desc)
		}
	}
	return fresh, nil
}
