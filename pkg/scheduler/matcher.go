package scheduler

import (
	"fmt"

	"github.com/computefleet/fleetd/pkg/models"
)

// CanNodeSatisfyTask checks a single node against a task's stated
// requirements. The reason string names the first unmet requirement,
// for logging.
func CanNodeSatisfyTask(node *models.ComputeNode, req *models.TaskRequirements) (bool, string) {
	if node.Status != models.NodeStatusOnline {
		return false, fmt.Sprintf("node %s is %s", node.Name, node.Status)
	}
	if req == nil {
		return true, ""
	}

	if req.MinCores > 0 && node.Capabilities.CPUCores < req.MinCores {
		return false, fmt.Sprintf("task requires %d cores but node %s has %d",
			req.MinCores, node.Name, node.Capabilities.CPUCores)
	}
	if req.MinMemoryGB > 0 && node.Capabilities.MemoryGB < req.MinMemoryGB {
		return false, fmt.Sprintf("task requires %.1f GB memory but node %s has %.1f",
			req.MinMemoryGB, node.Name, node.Capabilities.MemoryGB)
	}
	if req.GPU && !node.HasGPU() {
		return false, fmt.Sprintf("task requires a GPU but node %s has none", node.Name)
	}
	if req.MinGPUMemoryGB > 0 {
		if !node.HasGPU() {
			return false, fmt.Sprintf("task requires %.1f GB GPU memory but node %s has no GPU",
				req.MinGPUMemoryGB, node.Name)
		}
		if node.Capabilities.GPU.MemoryGB < req.MinGPUMemoryGB {
			return false, fmt.Sprintf("task requires %.1f GB GPU memory but node %s has %.1f",
				req.MinGPUMemoryGB, node.Name, node.Capabilities.GPU.MemoryGB)
		}
	}
	return true, ""
}

// Eligible filters nodes down to those that can run the task right now.
// Pure function: no side effects, called fresh on every scheduling
// attempt because node status and usage change between ticks. Input
// order (registry order) is preserved in the result.
func Eligible(task *models.ComputeTask, nodes []*models.ComputeNode) ([]*models.ComputeNode, string) {
	var eligible []*models.ComputeNode
	var firstReason string

	for _, node := range nodes {
		ok, reason := CanNodeSatisfyTask(node, task.Requirements)
		if ok {
			eligible = append(eligible, node)
		} else if firstReason == "" {
			firstReason = reason
		}
	}
	return eligible, firstReason
}
