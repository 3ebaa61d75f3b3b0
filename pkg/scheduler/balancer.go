package scheduler

import (
	"github.com/computefleet/fleetd/pkg/models"
)

// Balancer picks one node among the eligible set according to the
// configured policy. It is not a pure function: round-robin keeps a
// rotation cursor across calls so ties rotate instead of always landing
// on the first node in registry order.
type Balancer struct {
	cursor int
}

// Pick selects a node, or nil when the eligible set is empty. An empty
// set is not an error; the task simply stays pending.
func (b *Balancer) Pick(policy models.BalancingPolicy, eligible []*models.ComputeNode) *models.ComputeNode {
	if len(eligible) == 0 {
		return nil
	}

	switch policy {
	case models.BalanceLeastLoaded:
		return leastLoaded(eligible)
	case models.BalanceFastestNode:
		return fastestNode(eligible)
	case models.BalanceRoundRobin:
		fallthrough
	default:
		node := eligible[b.cursor%len(eligible)]
		b.cursor++
		return node
	}
}

// leastLoaded minimizes cpu usage; ties keep registry order
func leastLoaded(eligible []*models.ComputeNode) *models.ComputeNode {
	best := eligible[0]
	for _, node := range eligible[1:] {
		if node.Performance.CPUUsagePct < best.Performance.CPUUsagePct {
			best = node
		}
	}
	return best
}

// fastestNode maximizes cores*clock; ties keep registry order
func fastestNode(eligible []*models.ComputeNode) *models.ComputeNode {
	best := eligible[0]
	for _, node := range eligible[1:] {
		if node.ComputePower() > best.ComputePower() {
			best = node
		}
	}
	return best
}
