package store

import (
	"errors"
	"time"

	"github.com/computefleet/fleetd/pkg/models"
)

var (
	// ErrNoSnapshot is returned by LoadSnapshot when nothing has been
	// checkpointed yet.
	ErrNoSnapshot = errors.New("no snapshot stored")
)

// Snapshot is a point-in-time copy of scheduler state. Checkpointing is
// best-effort recovery material, not a system of record: the live
// scheduler state stays authoritative.
type Snapshot struct {
	TakenAt time.Time
	Nodes   []*models.ComputeNode
	Tasks   []*models.ComputeTask
}

// Store persists scheduler snapshots
type Store interface {
	SaveSnapshot(snap *Snapshot) error
	LoadSnapshot() (*Snapshot, error)
	Close() error
}
