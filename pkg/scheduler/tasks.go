package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/computefleet/fleetd/pkg/models"
)

// ErrTaskNotFound is returned when a task id is unknown
var ErrTaskNotFound = fmt.Errorf("task not found")

// agingBoostInterval is how long a task must wait in the queue to gain
// one effective priority level when priority boost is enabled
const agingBoostInterval = 5 * time.Minute

// Submit enqueues a task. Submission always succeeds; requirements
// that no node can ever satisfy simply leave the task pending.
func (s *Scheduler) Submit(req models.TaskRequest) *models.ComputeTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityNormal
	}
	task := &models.ComputeTask{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Kind:         req.Kind,
		Status:       models.TaskStatusPending,
		Priority:     priority,
		Requirements: req.Requirements,
		CreatedAt:    time.Now(),
	}
	s.tasks[task.ID] = task
	s.taskOrder = append(s.taskOrder, task.ID)
	s.stats.TasksSubmitted++

	s.logger.Info(fmt.Sprintf("Task submitted: %s [%s] kind=%s priority=%s",
		task.Name, task.ID, task.Kind, task.Priority))
	return task.Clone()
}

// Cancel moves a pending or running task to canceled. It reports false
// for unknown ids and for tasks already in a terminal state, so
// repeated cancels are harmless.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || models.IsTerminalState(task.Status) {
		return false
	}

	now := time.Now()
	task.Status = models.TaskStatusCanceled
	task.CompletedAt = &now
	s.stats.TasksCanceled++
	s.logger.Info(fmt.Sprintf("Task canceled: %s [%s]", task.Name, task.ID))
	return true
}

// GetTask returns a copy of the task, or ErrTaskNotFound
func (s *Scheduler) GetTask(id string) (*models.ComputeTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// ListTasks returns copies of all tasks in submission order
func (s *Scheduler) ListTasks() []*models.ComputeTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ComputeTask, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

// advanceRunningLocked steps every running task once. Deadline checks
// happen before the step so a timed-out task never gains progress.
// Caller holds mu.
func (s *Scheduler) advanceRunningLocked(now time.Time) {
	for _, id := range s.taskOrder {
		task := s.tasks[id]
		if task.Status != models.TaskStatusRunning {
			continue
		}

		if deadline := taskDeadline(task, s.opts); deadline > 0 && task.StartedAt != nil {
			if now.Sub(*task.StartedAt) > deadline {
				s.stats.TasksTimedOut++
				s.failLocked(task, fmt.Sprintf("timed out after %v", deadline), now)
				continue
			}
		}

		res := s.executor.Step(task)
		if res.Failed {
			s.failLocked(task, res.Reason, now)
			continue
		}

		task.Progress += res.Delta
		if task.Progress >= 100 {
			task.Progress = 100
			task.Status = models.TaskStatusCompleted
			completed := now
			task.CompletedAt = &completed
			task.Result = fmt.Sprintf("completed on node %s", task.NodeID)
			s.stats.TasksCompleted++
			s.logger.Info(fmt.Sprintf("Task completed: %s [%s] on node %s (attempt %d)",
				task.Name, task.ID, task.NodeID, task.Attempts))
		}
	}
}

// failLocked applies the failure policy: requeue while retry budget
// remains, otherwise park the task as failed. A requeued task keeps
// its last node id as a hint of where it ran. Caller holds mu.
func (s *Scheduler) failLocked(task *models.ComputeTask, reason string, now time.Time) {
	if s.opts.RetryFailed && task.Attempts < s.opts.MaxRetries {
		task.Status = models.TaskStatusPending
		task.Progress = 0
		task.StartedAt = nil
		task.Error = ""
		s.stats.TasksRetried++
		s.logger.Warn(fmt.Sprintf("Task requeued after failure: %s [%s] attempt %d/%d: %s",
			task.Name, task.ID, task.Attempts, s.opts.MaxRetries, reason))
		return
	}

	task.Status = models.TaskStatusFailed
	task.Error = reason
	completed := now
	task.CompletedAt = &completed
	s.stats.TasksFailed++
	s.logger.Error(fmt.Sprintf("Task failed: %s [%s] on node %s: %s",
		task.Name, task.ID, task.NodeID, reason))
}

// promotePendingLocked assigns pending tasks to eligible nodes until
// the concurrency cap is reached. Higher priority goes first; within
// a priority level older submissions win. Caller holds mu.
func (s *Scheduler) promotePendingLocked(now time.Time) {
	running := 0
	pending := make([]*models.ComputeTask, 0)
	for _, id := range s.taskOrder {
		switch s.tasks[id].Status {
		case models.TaskStatusRunning:
			running++
		case models.TaskStatusPending:
			pending = append(pending, s.tasks[id])
		}
	}
	if running >= s.opts.MaxConcurrentTasks || len(pending) == 0 {
		return
	}

	boost := s.opts.PriorityBoost
	sort.SliceStable(pending, func(i, j int) bool {
		wi := effectiveWeight(pending[i], boost, now)
		wj := effectiveWeight(pending[j], boost, now)
		if wi != wj {
			return wi > wj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	nodes := s.registry.All()
	for _, task := range pending {
		if running >= s.opts.MaxConcurrentTasks {
			return
		}

		eligible, reason := Eligible(task, nodes)
		node := s.balancer.Pick(s.opts.LoadBalancing, eligible)
		if node == nil {
			s.logger.Debug(fmt.Sprintf("Task %s [%s] stays pending: %s", task.Name, task.ID, reason))
			continue
		}

		started := now
		task.Status = models.TaskStatusRunning
		task.NodeID = node.ID
		task.Progress = 0
		task.StartedAt = &started
		task.Attempts++
		running++
		s.stats.Assignments++
		s.logger.Info(fmt.Sprintf("Task assigned: %s [%s] -> %s [%s] (%s)",
			task.Name, task.ID, node.Name, node.ID, s.opts.LoadBalancing))
	}
}

// effectiveWeight is the task's priority weight, plus one level per
// aging interval spent queued when priority boost is on
func effectiveWeight(task *models.ComputeTask, boost bool, now time.Time) int {
	w := models.PriorityWeight(task.Priority)
	if boost {
		w += int(now.Sub(task.CreatedAt) / agingBoostInterval)
	}
	return w
}

// taskDeadline picks the per-task deadline: the padded estimate when
// one was given, the global timeout otherwise. Zero means no deadline.
func taskDeadline(task *models.ComputeTask, opts models.SchedulerOptions) time.Duration {
	if task.Requirements != nil && task.Requirements.EstimatedDurationSec > 0 {
		est := float64(task.Requirements.EstimatedDurationSec) * timeoutSafetyFactor
		return time.Duration(est) * time.Second
	}
	if opts.TaskTimeoutSec > 0 {
		return time.Duration(opts.TaskTimeoutSec) * time.Second
	}
	return 0
}
