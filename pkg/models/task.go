package models

import (
	"time"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// TaskKind represents the category of work a task carries
type TaskKind string

const (
	TaskKindTraining   TaskKind = "training"
	TaskKindInference  TaskKind = "inference"
	TaskKindProcessing TaskKind = "processing"
	TaskKindRendering  TaskKind = "rendering"
	TaskKindSimulation TaskKind = "simulation"
)

// TaskPriority orders pending tasks for promotion
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityNormal   TaskPriority = "normal"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

// TaskRequirements states what a task needs from a node. Zero values
// mean "no requirement".
type TaskRequirements struct {
	MinCores             int     `json:"min_cores,omitempty"`
	MinMemoryGB          float64 `json:"min_memory_gb,omitempty"`
	GPU                  bool    `json:"gpu,omitempty"`
	MinGPUMemoryGB       float64 `json:"min_gpu_memory_gb,omitempty"`
	EstimatedDurationSec int     `json:"estimated_duration_sec,omitempty"`
}

// ComputeTask represents a unit of queued work. The scheduler owns a
// task exclusively for its whole lifetime; callers submit, cancel, and
// read snapshots.
type ComputeTask struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Kind         TaskKind          `json:"kind"`
	Status       TaskStatus        `json:"status"`
	Priority     TaskPriority      `json:"priority"`
	Progress     int               `json:"progress"` // 0-100, meaningful while running
	NodeID       string            `json:"node_id,omitempty"`
	Requirements *TaskRequirements `json:"requirements,omitempty"`
	Attempts     int               `json:"attempts"` // execution attempts consumed
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Result       string            `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// TaskRequest is the submission payload for a new task
type TaskRequest struct {
	Name         string            `json:"name"`
	Kind         TaskKind          `json:"kind"`
	Priority     TaskPriority      `json:"priority,omitempty"`
	Requirements *TaskRequirements `json:"requirements,omitempty"`
}

// Clone returns a deep copy of the task for read-only callers
func (t *ComputeTask) Clone() *ComputeTask {
	c := *t
	if t.Requirements != nil {
		req := *t.Requirements
		c.Requirements = &req
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}
