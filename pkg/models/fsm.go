package models

import (
	"fmt"
)

// validTransitions maps from-state to allowed to-states
var validTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusRunning:  true, // Pending → Running (node assigned)
		TaskStatusCanceled: true, // Pending → Canceled (caller cancels)
	},
	TaskStatusRunning: {
		TaskStatusCompleted: true, // Running → Completed (progress reached 100)
		TaskStatusFailed:    true, // Running → Failed (execution error or timeout)
		TaskStatusCanceled:  true, // Running → Canceled (caller cancels, label only)
		TaskStatusPending:   true, // Running → Pending (requeue under retry policy)
	},
	// Terminal states (no transitions allowed)
	TaskStatusCompleted: {},
	TaskStatusFailed:    {},
	TaskStatusCanceled:  {},
}

// ValidateTransition checks whether a state transition is allowed
func ValidateTransition(from, to TaskStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if the state permits no further transitions
func IsTerminalState(state TaskStatus) bool {
	return state == TaskStatusCompleted || state == TaskStatusFailed || state == TaskStatusCanceled
}

// PriorityWeight returns the numeric weight used to order pending tasks
func PriorityWeight(p TaskPriority) int {
	switch p {
	case TaskPriorityCritical:
		return 4
	case TaskPriorityHigh:
		return 3
	case TaskPriorityNormal:
		return 2
	case TaskPriorityLow:
		return 1
	default:
		return 2 // unknown priorities schedule as normal
	}
}
