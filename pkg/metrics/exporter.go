package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/computefleet/fleetd/pkg/models"
	"github.com/computefleet/fleetd/pkg/scheduler"
)

// FleetState is the read-only view of the scheduler the exporter
// scrapes on every request
type FleetState interface {
	ListNodes() []*models.ComputeNode
	ListTasks() []*models.ComputeTask
	Capacity() models.AggregateCapacity
	Stats() scheduler.Stats
	Uptime() time.Duration
}

// FleetExporter exports Prometheus metrics for the fleet scheduler
type FleetExporter struct {
	state FleetState
}

// NewFleetExporter creates a Prometheus exporter over the scheduler
func NewFleetExporter(state FleetState) *FleetExporter {
	return &FleetExporter{state: state}
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics. Fleet
// gauges are written by hand from a fresh state snapshot; anything
// registered with the default Prometheus registry is appended after.
func (e *FleetExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	nodes := e.state.ListNodes()
	tasks := e.state.ListTasks()
	capacity := e.state.Capacity()
	stats := e.state.Stats()

	// All statuses exported even at 0 so dashboards never see gaps
	nodesByStatus := map[models.NodeStatus]int{
		models.NodeStatusOnline:  0,
		models.NodeStatusOffline: 0,
		models.NodeStatusBusy:    0,
	}
	for _, node := range nodes {
		nodesByStatus[node.Status]++
	}

	tasksByStatus := map[models.TaskStatus]int{
		models.TaskStatusPending:   0,
		models.TaskStatusRunning:   0,
		models.TaskStatusCompleted: 0,
		models.TaskStatusFailed:    0,
		models.TaskStatusCanceled:  0,
	}
	for _, task := range tasks {
		tasksByStatus[task.Status]++
	}

	fmt.Fprintf(w, "# HELP fleetd_nodes_total Registered compute nodes\n")
	fmt.Fprintf(w, "# TYPE fleetd_nodes_total gauge\n")
	fmt.Fprintf(w, "fleetd_nodes_total %d\n", len(nodes))

	fmt.Fprintf(w, "\n# HELP fleetd_nodes_by_status Compute nodes by status\n")
	fmt.Fprintf(w, "# TYPE fleetd_nodes_by_status gauge\n")
	for _, status := range []models.NodeStatus{models.NodeStatusOnline, models.NodeStatusOffline, models.NodeStatusBusy} {
		fmt.Fprintf(w, "fleetd_nodes_by_status{status=\"%s\"} %d\n", status, nodesByStatus[status])
	}

	fmt.Fprintf(w, "\n# HELP fleetd_tasks_by_status Tasks by lifecycle state\n")
	fmt.Fprintf(w, "# TYPE fleetd_tasks_by_status gauge\n")
	for _, status := range []models.TaskStatus{
		models.TaskStatusPending, models.TaskStatusRunning,
		models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCanceled,
	} {
		fmt.Fprintf(w, "fleetd_tasks_by_status{status=\"%s\"} %d\n", status, tasksByStatus[status])
	}

	fmt.Fprintf(w, "\n# HELP fleetd_tasks_submitted_total Tasks submitted since start\n")
	fmt.Fprintf(w, "# TYPE fleetd_tasks_submitted_total counter\n")
	fmt.Fprintf(w, "fleetd_tasks_submitted_total %d\n", stats.TasksSubmitted)

	fmt.Fprintf(w, "\n# HELP fleetd_task_assignments_total Pending to running promotions\n")
	fmt.Fprintf(w, "# TYPE fleetd_task_assignments_total counter\n")
	fmt.Fprintf(w, "fleetd_task_assignments_total %d\n", stats.Assignments)

	fmt.Fprintf(w, "\n# HELP fleetd_task_retries_total Failed tasks requeued for retry\n")
	fmt.Fprintf(w, "# TYPE fleetd_task_retries_total counter\n")
	fmt.Fprintf(w, "fleetd_task_retries_total %d\n", stats.TasksRetried)

	fmt.Fprintf(w, "\n# HELP fleetd_task_timeouts_total Tasks force-failed by deadline\n")
	fmt.Fprintf(w, "# TYPE fleetd_task_timeouts_total counter\n")
	fmt.Fprintf(w, "fleetd_task_timeouts_total %d\n", stats.TasksTimedOut)

	fmt.Fprintf(w, "\n# HELP fleetd_probe_failures_total Discovery probe errors\n")
	fmt.Fprintf(w, "# TYPE fleetd_probe_failures_total counter\n")
	fmt.Fprintf(w, "fleetd_probe_failures_total %d\n", stats.ProbeFailures)

	fmt.Fprintf(w, "\n# HELP fleetd_fleet_cores Aggregate CPU cores across online nodes\n")
	fmt.Fprintf(w, "# TYPE fleetd_fleet_cores gauge\n")
	fmt.Fprintf(w, "fleetd_fleet_cores %d\n", capacity.TotalCores)

	fmt.Fprintf(w, "\n# HELP fleetd_fleet_memory_gb Aggregate memory across online nodes\n")
	fmt.Fprintf(w, "# TYPE fleetd_fleet_memory_gb gauge\n")
	fmt.Fprintf(w, "fleetd_fleet_memory_gb %.1f\n", capacity.TotalMemoryGB)

	fmt.Fprintf(w, "\n# HELP fleetd_fleet_gpu_cores Aggregate GPU cores across online nodes\n")
	fmt.Fprintf(w, "# TYPE fleetd_fleet_gpu_cores gauge\n")
	fmt.Fprintf(w, "fleetd_fleet_gpu_cores %d\n", capacity.TotalGPUCores)

	fmt.Fprintf(w, "\n# HELP fleetd_uptime_seconds Scheduler uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE fleetd_uptime_seconds gauge\n")
	fmt.Fprintf(w, "fleetd_uptime_seconds %.0f\n", e.state.Uptime().Seconds())

	fmt.Fprintf(w, "\n")

	// Append registry-managed metrics (HTTP instrumentation and the
	// Go runtime collectors) in text exposition format
	metricFamilies, err := promclient.DefaultGatherer.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering Prometheus metrics: %v\n", err)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}
	w.Write(buf.Bytes())
}
