package probe

import (
	"context"
	"errors"

	"github.com/computefleet/fleetd/pkg/models"
)

// NodeProbe reports newly visible compute nodes. Implementations must
// not return nodes whose ids are already in knownIDs; the scheduler
// also guards against duplicates when merging. A probe error skips the
// discovery tick and is never fatal.
type NodeProbe interface {
	Discover(ctx context.Context, knownIDs []string) ([]models.NodeDescriptor, error)
}

// Multi fans discovery out over several probes and concatenates their
// results. Errors are collected so one failing probe does not hide the
// others' nodes.
type Multi []NodeProbe

// Discover queries every probe in order
func (m Multi) Discover(ctx context.Context, knownIDs []string) ([]models.NodeDescriptor, error) {
	var found []models.NodeDescriptor
	var errs []error
	for _, p := range m {
		nodes, err := p.Discover(ctx, knownIDs)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = append(found, nodes...)
	}
	return found, errors.Join(errs...)
}
