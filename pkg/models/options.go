package models

// BalancingPolicy selects how the scheduler picks among eligible nodes
type BalancingPolicy string

const (
	BalanceRoundRobin  BalancingPolicy = "round-robin"
	BalanceLeastLoaded BalancingPolicy = "least-loaded"
	BalanceFastestNode BalancingPolicy = "fastest-node"
)

// Valid reports whether the policy is one of the known values
func (p BalancingPolicy) Valid() bool {
	switch p {
	case BalanceRoundRobin, BalanceLeastLoaded, BalanceFastestNode:
		return true
	}
	return false
}

// SchedulerOptions is process-wide scheduler configuration. It is set
// at initialization and may be updated at runtime through the
// scheduler's UpdateOptions.
type SchedulerOptions struct {
	AutoDiscovery         bool            `json:"auto_discovery" yaml:"auto_discovery" mapstructure:"auto_discovery"`
	MaxConcurrentTasks    int             `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks" mapstructure:"max_concurrent_tasks"`
	TaskTimeoutSec        int             `json:"task_timeout_sec" yaml:"task_timeout_sec" mapstructure:"task_timeout_sec"`
	PriorityBoost         bool            `json:"priority_boost" yaml:"priority_boost" mapstructure:"priority_boost"`
	LoadBalancing         BalancingPolicy `json:"load_balancing" yaml:"load_balancing" mapstructure:"load_balancing"`
	RetryFailed           bool            `json:"retry_failed" yaml:"retry_failed" mapstructure:"retry_failed"`
	MaxRetries            int             `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	CheckpointIntervalSec int             `json:"checkpoint_interval_sec" yaml:"checkpoint_interval_sec" mapstructure:"checkpoint_interval_sec"`
}

// DefaultSchedulerOptions returns sensible defaults
func DefaultSchedulerOptions() SchedulerOptions {
	return SchedulerOptions{
		AutoDiscovery:         true,
		MaxConcurrentTasks:    4,
		TaskTimeoutSec:        1800,
		PriorityBoost:         false,
		LoadBalancing:         BalanceLeastLoaded,
		RetryFailed:           false,
		MaxRetries:            3,
		CheckpointIntervalSec: 0, // disabled unless a checkpoint store is configured
	}
}

// OptionsPatch is a partial update to SchedulerOptions. Nil fields are
// left unchanged by Apply.
type OptionsPatch struct {
	AutoDiscovery         *bool            `json:"auto_discovery,omitempty"`
	MaxConcurrentTasks    *int             `json:"max_concurrent_tasks,omitempty"`
	TaskTimeoutSec        *int             `json:"task_timeout_sec,omitempty"`
	PriorityBoost         *bool            `json:"priority_boost,omitempty"`
	LoadBalancing         *BalancingPolicy `json:"load_balancing,omitempty"`
	RetryFailed           *bool            `json:"retry_failed,omitempty"`
	MaxRetries            *int             `json:"max_retries,omitempty"`
	CheckpointIntervalSec *int             `json:"checkpoint_interval_sec,omitempty"`
}

// Apply merges the patch into opts and returns the result
func (p *OptionsPatch) Apply(opts SchedulerOptions) SchedulerOptions {
	if p.AutoDiscovery != nil {
		opts.AutoDiscovery = *p.AutoDiscovery
	}
	if p.MaxConcurrentTasks != nil {
		opts.MaxConcurrentTasks = *p.MaxConcurrentTasks
	}
	if p.TaskTimeoutSec != nil {
		opts.TaskTimeoutSec = *p.TaskTimeoutSec
	}
	if p.PriorityBoost != nil {
		opts.PriorityBoost = *p.PriorityBoost
	}
	if p.LoadBalancing != nil {
		opts.LoadBalancing = *p.LoadBalancing
	}
	if p.RetryFailed != nil {
		opts.RetryFailed = *p.RetryFailed
	}
	if p.MaxRetries != nil {
		opts.MaxRetries = *p.MaxRetries
	}
	if p.CheckpointIntervalSec != nil {
		opts.CheckpointIntervalSec = *p.CheckpointIntervalSec
	}
	return opts
}
