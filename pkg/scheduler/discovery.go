package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/computefleet/fleetd/pkg/models"
)

// discoverTick kicks off one probe round. The probe call runs outside
// the scheduler lock since it may block on network or cloud APIs;
// results merge back under the lock when it returns.
func (s *Scheduler) discoverTick() {
	known := s.registry.IDs()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.discoveryInterval)
		defer cancel()

		found, err := s.nodeProbe.Discover(ctx, known)
		if err != nil {
			s.mu.Lock()
			s.stats.ProbeFailures++
			s.mu.Unlock()
			s.logger.Warn(fmt.Sprintf("Node probe failed: %v", err))
		}
		// a partially failed fan-out can still surface nodes
		if len(found) > 0 {
			s.mergeDiscovered(found)
		}
	}()
}

// mergeDiscovered registers newly found nodes. Duplicates of already
// known nodes are skipped so descriptors from overlapping probes do
// not reset node state.
func (s *Scheduler) mergeDiscovered(found []models.NodeDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.stats.LastDiscovery = now

	for _, desc := range found {
		if s.registry.Contains(desc.ID) {
			continue
		}
		node := &models.ComputeNode{
			ID:           desc.ID,
			Name:         desc.Name,
			Kind:         desc.Kind,
			Status:       models.NodeStatusOnline,
			Capabilities: desc.Capabilities,
			Performance:  s.telemetry.Sample(),
			Location:     desc.Location,
			LastSeen:     now,
			RegisteredAt: now,
		}
		if err := s.registry.Add(node); err != nil {
			continue
		}
		s.stats.NodesDiscovered++
		s.logger.Info(fmt.Sprintf("Discovered %s node: %s [%s] (%d cores, %.1f GB, gpu: %v)",
			node.Kind, node.Name, node.ID, node.Capabilities.CPUCores,
			node.Capabilities.MemoryGB, node.HasGPU()))
	}
}
