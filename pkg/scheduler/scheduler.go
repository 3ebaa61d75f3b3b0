package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/computefleet/fleetd/pkg/executor"
	"github.com/computefleet/fleetd/pkg/logging"
	"github.com/computefleet/fleetd/pkg/models"
	"github.com/computefleet/fleetd/pkg/probe"
	"github.com/computefleet/fleetd/pkg/registry"
	"github.com/computefleet/fleetd/pkg/store"
	"github.com/computefleet/fleetd/pkg/telemetry"
)

const (
	// DefaultDiscoveryInterval is how often the node probe runs
	DefaultDiscoveryInterval = 30 * time.Second
	// DefaultTelemetryInterval is how often node health refreshes and
	// the task state machine advances
	DefaultTelemetryInterval = 5 * time.Second

	// timeoutSafetyFactor pads a task's estimated duration before the
	// deadline check force-fails it
	timeoutSafetyFactor = 2.0
)

// Config wires the scheduler's collaborators. Zero-value fields get
// simulated defaults, so Config{} yields a fully self-contained
// simulated fleet.
type Config struct {
	Options           models.SchedulerOptions
	DiscoveryInterval time.Duration
	TelemetryInterval time.Duration

	Probe       probe.NodeProbe
	Telemetry   telemetry.Source
	Executor    executor.Executor
	Checkpoints store.Store

	Logger *logging.Logger

	// LocalNode overrides host detection; tests use this for a fixed
	// local node.
	LocalNode *models.ComputeNode
}

// Stats tracks scheduler activity counters
type Stats struct {
	TasksSubmitted  int       `json:"tasks_submitted"`
	TasksCompleted  int       `json:"tasks_completed"`
	TasksFailed     int       `json:"tasks_failed"`
	TasksCanceled   int       `json:"tasks_canceled"`
	TasksRetried    int       `json:"tasks_retried"`
	TasksTimedOut   int       `json:"tasks_timed_out"`
	Assignments     int       `json:"assignments"`
	NodesDiscovered int       `json:"nodes_discovered"`
	ProbeFailures   int       `json:"probe_failures"`
	LastDiscovery   time.Time `json:"last_discovery"`
	LastTelemetry   time.Time `json:"last_telemetry"`
	LastCheckpoint  time.Time `json:"last_checkpoint"`
}

// Scheduler owns the node registry and the task state machine. All
// state mutation — timer-fired and caller-invoked — happens under one
// mutex held for the full duration of each tick or operation, so the
// single-writer guarantee holds no matter how many goroutines call in.
// Read-only queries return deep copies.
type Scheduler struct {
	mu        sync.Mutex
	opts      models.SchedulerOptions
	registry  *registry.Registry
	localID   string
	tasks     map[string]*models.ComputeTask
	taskOrder []string
	balancer  Balancer
	stats     Stats

	nodeProbe   probe.NodeProbe
	telemetry   telemetry.Source
	executor    executor.Executor
	checkpoints store.Store
	logger      *logging.Logger

	discoveryInterval time.Duration
	telemetryInterval time.Duration

	startTime      time.Time
	lastCheckpoint time.Time

	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	discoveryStop chan struct{}
}

// New creates a scheduler instance. The local node is registered
// immediately; if a checkpoint store holds a snapshot, nodes and tasks
// are restored from it before the first tick.
func New(cfg Config) (*Scheduler, error) {
	opts := cfg.Options
	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = models.DefaultSchedulerOptions().MaxConcurrentTasks
	}
	if opts.LoadBalancing == "" {
		opts.LoadBalancing = models.BalanceLeastLoaded
	}
	if !opts.LoadBalancing.Valid() {
		return nil, fmt.Errorf("unknown load balancing policy: %s", opts.LoadBalancing)
	}

	s := &Scheduler{
		opts:              opts,
		registry:          registry.New(),
		tasks:             make(map[string]*models.ComputeTask),
		nodeProbe:         cfg.Probe,
		telemetry:         cfg.Telemetry,
		executor:          cfg.Executor,
		checkpoints:       cfg.Checkpoints,
		logger:            cfg.Logger,
		discoveryInterval: cfg.DiscoveryInterval,
		telemetryInterval: cfg.TelemetryInterval,
		stopCh:            make(chan struct{}),
	}
	if s.nodeProbe == nil {
		s.nodeProbe = probe.NewSimulatedProbe(probe.DefaultSimulatedProbeConfig(), nil)
	}
	if s.telemetry == nil {
		s.telemetry = telemetry.NewSimulated(telemetry.DefaultSimulatedConfig(), nil)
	}
	if s.executor == nil {
		s.executor = executor.NewSimulated(executor.DefaultSimulatedConfig(), nil)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger(logging.INFO, false)
	}
	if s.discoveryInterval <= 0 {
		s.discoveryInterval = DefaultDiscoveryInterval
	}
	if s.telemetryInterval <= 0 {
		s.telemetryInterval = DefaultTelemetryInterval
	}

	local := cfg.LocalNode
	if local == nil {
		local = probe.LocalNode()
	}
	local.Kind = models.NodeKindLocal
	local.Status = models.NodeStatusOnline
	local.Performance = s.telemetry.Sample()
	if err := s.registry.Add(local); err != nil {
		return nil, fmt.Errorf("failed to register local node: %w", err)
	}
	s.localID = local.ID
	s.logger.Info(fmt.Sprintf("Local node registered: %s [%s] (%d cores, %.1f GB)",
		local.Name, local.ID, local.Capabilities.CPUCores, local.Capabilities.MemoryGB))

	if s.checkpoints != nil {
		if err := s.restore(); err != nil {
			s.logger.Warn(fmt.Sprintf("Checkpoint restore skipped: %v", err))
		}
	}

	return s, nil
}

// Start launches the telemetry loop and, when auto discovery is
// enabled, the discovery loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.startTime = time.Now()
	autoDiscovery := s.opts.AutoDiscovery
	if autoDiscovery {
		s.startDiscoveryLocked()
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.telemetryLoop()

	s.logger.Info(fmt.Sprintf("Scheduler started (telemetry: %v, discovery: %v, auto-discovery: %v)",
		s.telemetryInterval, s.discoveryInterval, autoDiscovery))
}

// Shutdown stops both timers and waits for in-flight work to drain.
// When a checkpoint store is configured, a final snapshot is written.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.logger.Info("Scheduler stopping...")
		close(s.stopCh)

		s.mu.Lock()
		s.stopDiscoveryLocked()
		s.mu.Unlock()

		s.wg.Wait()

		if s.checkpoints != nil {
			s.mu.Lock()
			snap := s.snapshotLocked()
			s.mu.Unlock()
			if err := s.checkpoints.SaveSnapshot(snap); err != nil {
				s.logger.Error(fmt.Sprintf("Final checkpoint failed: %v", err))
			}
		}
		s.logger.Info("Scheduler stopped")
	})
}

// telemetryLoop drives node health refresh and the task state machine
func (s *Scheduler) telemetryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.telemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.telemetryTick(time.Now())
			s.maybeCheckpoint()
		case <-s.stopCh:
			return
		}
	}
}

// discoveryLoop fires once immediately, then on every discovery
// interval, until stopped by option toggle or shutdown.
func (s *Scheduler) discoveryLoop(stop chan struct{}) {
	defer s.wg.Done()

	s.discoverTick()

	ticker := time.NewTicker(s.discoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.discoverTick()
		case <-stop:
			return
		case <-s.stopCh:
			return
		}
	}
}

// startDiscoveryLocked launches the discovery loop. Caller holds mu.
func (s *Scheduler) startDiscoveryLocked() {
	if s.discoveryStop != nil {
		return
	}
	stop := make(chan struct{})
	s.discoveryStop = stop
	s.wg.Add(1)
	go s.discoveryLoop(stop)
}

// stopDiscoveryLocked halts the discovery loop. Caller holds mu.
func (s *Scheduler) stopDiscoveryLocked() {
	if s.discoveryStop == nil {
		return
	}
	close(s.discoveryStop)
	s.discoveryStop = nil
}

// Options returns a copy of the live scheduler options
func (s *Scheduler) Options() models.SchedulerOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// UpdateOptions merges a partial update into the live options.
// Toggling auto discovery starts or stops the discovery timer.
func (s *Scheduler) UpdateOptions(patch models.OptionsPatch) (models.SchedulerOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := patch.Apply(s.opts)
	if !next.LoadBalancing.Valid() {
		return s.opts, fmt.Errorf("unknown load balancing policy: %s", next.LoadBalancing)
	}
	if next.MaxConcurrentTasks <= 0 {
		return s.opts, fmt.Errorf("max_concurrent_tasks must be positive, got %d", next.MaxConcurrentTasks)
	}

	prev := s.opts
	s.opts = next

	if prev.AutoDiscovery != next.AutoDiscovery {
		if next.AutoDiscovery {
			s.startDiscoveryLocked()
			s.logger.Info("Auto discovery enabled")
		} else {
			s.stopDiscoveryLocked()
			s.logger.Info("Auto discovery disabled")
		}
	}
	return next, nil
}

// Stats returns a copy of the activity counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Uptime reports how long the scheduler has been running
func (s *Scheduler) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// LocalNodeID returns the id of the local node
func (s *Scheduler) LocalNodeID() string {
	return s.localID
}

// GetNode returns a copy of the node, or registry.ErrNodeNotFound
func (s *Scheduler) GetNode(id string) (*models.ComputeNode, error) {
	return s.registry.Get(id)
}

// ListNodes returns copies of all nodes in registration order
func (s *Scheduler) ListNodes() []*models.ComputeNode {
	return s.registry.All()
}

// Capacity returns derived fleet capacity over online nodes
func (s *Scheduler) Capacity() models.AggregateCapacity {
	return s.registry.Capacity()
}

// snapshotLocked collects a deep copy of all state. Caller holds mu.
func (s *Scheduler) snapshotLocked() *store.Snapshot {
	snap := &store.Snapshot{TakenAt: time.Now()}
	snap.Nodes = s.registry.All()
	for _, id := range s.taskOrder {
		snap.Tasks = append(snap.Tasks, s.tasks[id].Clone())
	}
	return snap
}

// maybeCheckpoint writes a snapshot if the checkpoint interval elapsed.
// The store write happens off the writer path.
func (s *Scheduler) maybeCheckpoint() {
	s.mu.Lock()
	interval := time.Duration(s.opts.CheckpointIntervalSec) * time.Second
	if s.checkpoints == nil || interval <= 0 || time.Since(s.lastCheckpoint) < interval {
		s.mu.Unlock()
		return
	}
	s.lastCheckpoint = time.Now()
	s.stats.LastCheckpoint = s.lastCheckpoint
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.checkpoints.SaveSnapshot(snap); err != nil {
			s.logger.Error(fmt.Sprintf("Checkpoint failed: %v", err))
		}
	}()
}

// restore loads the previous snapshot. Remote and cloud nodes come back
// with their stored status; tasks that were running when the snapshot
// was taken restart from pending since their execution did not survive.
func (s *Scheduler) restore() error {
	snap, err := s.checkpoints.LoadSnapshot()
	if err == store.ErrNoSnapshot {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restoredNodes := 0
	for _, node := range snap.Nodes {
		if node.Kind == models.NodeKindLocal {
			continue // the freshly detected local node wins
		}
		if err := s.registry.Add(node.Clone()); err == nil {
			restoredNodes++
		}
	}

	for _, task := range snap.Tasks {
		restored := task.Clone()
		if restored.Status == models.TaskStatusRunning {
			restored.Status = models.TaskStatusPending
			restored.Progress = 0
		}
		s.tasks[restored.ID] = restored
		s.taskOrder = append(s.taskOrder, restored.ID)
	}

	s.logger.Info(fmt.Sprintf("Restored checkpoint from %s: %d nodes, %d tasks",
		snap.TakenAt.Format(time.RFC3339), restoredNodes, len(snap.Tasks)))
	return nil
}
