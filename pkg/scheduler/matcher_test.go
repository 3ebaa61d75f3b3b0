package scheduler

import (
	"testing"

	"github.com/computefleet/fleetd/pkg/models"
)

func matchNode(id string, cores int, memGB float64, gpu *models.GPUSpec, status models.NodeStatus) *models.ComputeNode {
	return &models.ComputeNode{
		ID:     id,
		Name:   "node-" + id,
		Status: status,
		Capabilities: models.NodeCapabilities{
			CPUCores: cores,
			MemoryGB: memGB,
			GPU:      gpu,
		},
	}
}

func TestCanNodeSatisfyTask(t *testing.T) {
	tests := []struct {
		name string
		node *models.ComputeNode
		req  *models.TaskRequirements
		want bool
	}{
		{
			name: "no requirements",
			node: matchNode("a", 4, 8, nil, models.NodeStatusOnline),
			req:  nil,
			want: true,
		},
		{
			name: "offline node never matches",
			node: matchNode("a", 64, 256, nil, models.NodeStatusOffline),
			req:  nil,
			want: false,
		},
		{
			name: "busy node never matches",
			node: matchNode("a", 64, 256, nil, models.NodeStatusBusy),
			req:  nil,
			want: false,
		},
		{
			name: "enough cores",
			node: matchNode("a", 8, 16, nil, models.NodeStatusOnline),
			req:  &models.TaskRequirements{MinCores: 8},
			want: true,
		},
		{
			name: "too few cores",
			node: matchNode("a", 4, 16, nil, models.NodeStatusOnline),
			req:  &models.TaskRequirements{MinCores: 8},
			want: false,
		},
		{
			name: "too little memory",
			node: matchNode("a", 8, 8, nil, models.NodeStatusOnline),
			req:  &models.TaskRequirements{MinMemoryGB: 16},
			want: false,
		},
		{
			name: "gpu required and present",
			node: matchNode("a", 8, 16, &models.GPUSpec{Name: "T4", MemoryGB: 16}, models.NodeStatusOnline),
			req:  &models.TaskRequirements{GPU: true},
			want: true,
		},
		{
			name: "gpu required and missing",
			node: matchNode("a", 8, 16, nil, models.NodeStatusOnline),
			req:  &models.TaskRequirements{GPU: true},
			want: false,
		},
		{
			name: "gpu memory sufficient",
			node: matchNode("a", 8, 16, &models.GPUSpec{Name: "A100", MemoryGB: 40}, models.NodeStatusOnline),
			req:  &models.TaskRequirements{MinGPUMemoryGB: 24},
			want: true,
		},
		{
			name: "gpu memory insufficient",
			node: matchNode("a", 8, 16, &models.GPUSpec{Name: "T4", MemoryGB: 16}, models.NodeStatusOnline),
			req:  &models.TaskRequirements{MinGPUMemoryGB: 24},
			want: false,
		},
		{
			name: "gpu memory requirement implies gpu",
			node: matchNode("a", 8, 16, nil, models.NodeStatusOnline),
			req:  &models.TaskRequirements{MinGPUMemoryGB: 8},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := CanNodeSatisfyTask(tt.node, tt.req)
			if got != tt.want {
				t.Errorf("CanNodeSatisfyTask = %v (reason %q), want %v", got, reason, tt.want)
			}
			if !got && reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
}

func TestEligiblePreservesOrder(t *testing.T) {
	nodes := []*models.ComputeNode{
		matchNode("a", 2, 4, nil, models.NodeStatusOnline),
		matchNode("b", 16, 64, nil, models.NodeStatusOnline),
		matchNode("c", 8, 32, nil, models.NodeStatusOffline),
		matchNode("d", 8, 32, nil, models.NodeStatusOnline),
	}
	task := &models.ComputeTask{
		Requirements: &models.TaskRequirements{MinCores: 8},
	}

	eligible, _ := Eligible(task, nodes)
	if len(eligible) != 2 {
		t.Fatalf("eligible = %d nodes, want 2", len(eligible))
	}
	if eligible[0].ID != "b" || eligible[1].ID != "d" {
		t.Errorf("eligible order = [%s %s], want [b d]", eligible[0].ID, eligible[1].ID)
	}
}

func TestEligibleReportsFirstReason(t *testing.T) {
	nodes := []*models.ComputeNode{
		matchNode("a", 2, 4, nil, models.NodeStatusOnline),
	}
	task := &models.ComputeTask{
		Requirements: &models.TaskRequirements{MinCores: 32},
	}

	eligible, reason := Eligible(task, nodes)
	if len(eligible) != 0 {
		t.Fatalf("expected no eligible nodes, got %d", len(eligible))
	}
	if reason == "" {
		t.Error("expected a reason for the empty result")
	}
}
