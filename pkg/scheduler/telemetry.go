package scheduler

import (
	"fmt"
	"time"

	"github.com/computefleet/fleetd/pkg/models"
)

// telemetryTick refreshes node health, then advances the task state
// machine: running tasks step first, then pending tasks are promoted
// into any capacity freed this tick. One lock hold covers it all.
func (s *Scheduler) telemetryTick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.LastTelemetry = now
	s.refreshNodesLocked(now)
	s.advanceRunningLocked(now)
	s.promotePendingLocked(now)
}

// refreshNodesLocked applies status transitions and the metric random
// walk. The local node never flips offline; remote and cloud nodes may
// drop out or recover each tick. LastSeen is stamped with the tick
// time for every node observed online this round.
func (s *Scheduler) refreshNodesLocked(now time.Time) {
	for _, id := range s.registry.IDs() {
		local := id == s.localID
		_ = s.registry.Update(id, func(n *models.ComputeNode) {
			if !local {
				next := s.telemetry.NextStatus(n.Status)
				if next != n.Status {
					if next == models.NodeStatusOffline {
						n.Status = models.NodeStatusOffline
						s.logger.Warn(fmt.Sprintf("Node went offline: %s [%s]", n.Name, n.ID))
						return
					}
					n.Status = models.NodeStatusOnline
					n.Performance = s.telemetry.Sample()
					s.logger.Info(fmt.Sprintf("Node recovered: %s [%s]", n.Name, n.ID))
				}
			}
			if n.Status == models.NodeStatusOffline {
				return
			}
			n.Performance = s.telemetry.Refresh(n.Performance)
			n.LastSeen = now
		})
	}
}
