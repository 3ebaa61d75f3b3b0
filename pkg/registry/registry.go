package registry

import (
	"errors"
	"sync"

	"github.com/computefleet/fleetd/pkg/models"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrNodeExists   = errors.New("node already registered")
)

// Registry owns the set of compute nodes. Insertion order is preserved
// so iteration is deterministic, which the round-robin balancer and tie
// breaking rely on. Nodes are never removed; they degrade to offline.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*models.ComputeNode
	order []string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		nodes: make(map[string]*models.ComputeNode),
	}
}

// Add registers a new node. Adding an id that already exists is an error;
// discovery merges must check existing ids first.
func (r *Registry) Add(node *models.ComputeNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node.ID]; ok {
		return ErrNodeExists
	}
	r.nodes[node.ID] = node
	r.order = append(r.order, node.ID)
	return nil
}

// Update applies mutate to the node with the given id under the write lock
func (r *Registry) Update(id string, mutate func(*models.ComputeNode)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	mutate(node)
	return nil
}

// Get returns a copy of the node with the given id
func (r *Registry) Get(id string) (*models.ComputeNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node.Clone(), nil
}

// Contains reports whether a node with the given id is registered
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok
}

// All returns copies of all nodes in insertion order
func (r *Registry) All() []*models.ComputeNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*models.ComputeNode, 0, len(r.order))
	for _, id := range r.order {
		nodes = append(nodes, r.nodes[id].Clone())
	}
	return nodes
}

// IDs returns all node ids in insertion order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of registered nodes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Capacity sums capabilities over online nodes. Derived state: callers
// must not cache it across telemetry ticks.
func (r *Registry) Capacity() models.AggregateCapacity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cap models.AggregateCapacity
	for _, id := range r.order {
		node := r.nodes[id]
		if node.Status != models.NodeStatusOnline {
			continue
		}
		cap.ActiveNodes++
		cap.TotalCores += node.Capabilities.CPUCores
		cap.TotalMemoryGB += node.Capabilities.MemoryGB
		if node.Capabilities.GPU != nil {
			cap.TotalGPUCores += node.Capabilities.GPU.Cores
		}
	}
	return cap
}
