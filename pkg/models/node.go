package models

import (
	"time"
)

// NodeKind represents the kind of compute node
type NodeKind string

const (
	NodeKindLocal  NodeKind = "local"
	NodeKindRemote NodeKind = "remote"
	NodeKindCloud  NodeKind = "cloud"
)

// NodeStatus represents the health state of a node
type NodeStatus string

const (
	NodeStatusOnline  NodeStatus = "online"
	NodeStatusOffline NodeStatus = "offline"
	NodeStatusBusy    NodeStatus = "busy"
)

// GPUSpec describes a discrete GPU attached to a node
type GPUSpec struct {
	Name     string  `json:"name"`
	MemoryGB float64 `json:"memory_gb"`
	Cores    int     `json:"cores"`
}

// NodeCapabilities describes the fixed hardware capacity of a node.
// Capabilities are immutable after registration.
type NodeCapabilities struct {
	CPUCores    int      `json:"cpu_cores"`
	CPUSpeedGHz float64  `json:"cpu_speed_ghz"`
	MemoryGB    float64  `json:"memory_gb"`
	DiskGB      float64  `json:"disk_gb"`
	GPU         *GPUSpec `json:"gpu,omitempty"`
}

// NodePerformance holds live telemetry for a node. Only the telemetry
// service mutates it.
type NodePerformance struct {
	LoadAverage    [3]float64 `json:"load_average"` // 1/5/15-min, each in [0,1]
	CPUUsagePct    float64    `json:"cpu_usage_pct"`
	MemoryUsagePct float64    `json:"memory_usage_pct"`
	GPUUsagePct    float64    `json:"gpu_usage_pct,omitempty"`
}

// ComputeNode represents a registered unit of compute capacity
type ComputeNode struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Kind         NodeKind         `json:"kind"`
	Status       NodeStatus       `json:"status"`
	Capabilities NodeCapabilities `json:"capabilities"`
	Performance  NodePerformance  `json:"performance"`
	Location     string           `json:"location,omitempty"`
	LastSeen     time.Time        `json:"last_seen"`
	RegisteredAt time.Time        `json:"registered_at"`
}

// NodeDescriptor is what a discovery probe reports for a newly visible
// node. The scheduler fills in status, performance, and timestamps when
// it merges the node into the registry.
type NodeDescriptor struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Kind         NodeKind         `json:"kind"`
	Capabilities NodeCapabilities `json:"capabilities"`
	Location     string           `json:"location,omitempty"`
}

// Clone returns a deep copy of the node so read-only callers cannot
// mutate registry state.
func (n *ComputeNode) Clone() *ComputeNode {
	c := *n
	if n.Capabilities.GPU != nil {
		gpu := *n.Capabilities.GPU
		c.Capabilities.GPU = &gpu
	}
	return &c
}

// HasGPU reports whether the node has a discrete GPU
func (n *ComputeNode) HasGPU() bool {
	return n.Capabilities.GPU != nil
}

// ComputePower is the node's raw CPU throughput score (cores * clock).
// The fastest-node balancing policy maximizes this.
func (n *ComputeNode) ComputePower() float64 {
	return float64(n.Capabilities.CPUCores) * n.Capabilities.CPUSpeedGHz
}

// AggregateCapacity is derived fleet-wide capacity summed over online
// nodes only. It is recomputed on demand, never stored authoritatively.
type AggregateCapacity struct {
	ActiveNodes   int     `json:"active_nodes"`
	TotalCores    int     `json:"total_cores"`
	TotalMemoryGB float64 `json:"total_memory_gb"`
	TotalGPUCores int     `json:"total_gpu_cores"`
}
