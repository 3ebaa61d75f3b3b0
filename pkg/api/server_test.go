package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/computefleet/fleetd/pkg/api"
	"github.com/computefleet/fleetd/pkg/executor"
	"github.com/computefleet/fleetd/pkg/models"
	"github.com/computefleet/fleetd/pkg/probe"
	"github.com/computefleet/fleetd/pkg/scheduler"
	"github.com/computefleet/fleetd/pkg/telemetry"
)

// newTestRouter builds a router over a scheduler with all randomness
// disabled, so handlers see stable state without any ticking.
func newTestRouter(t *testing.T) (*mux.Router, *scheduler.Scheduler) {
	t.Helper()

	sched, err := scheduler.New(scheduler.Config{
		Options: models.DefaultSchedulerOptions(),
		Probe:   probe.NewSimulatedProbe(probe.SimulatedProbeConfig{DiscoveryChance: 0}, nil),
		Telemetry: telemetry.NewSimulated(telemetry.SimulatedConfig{
			FailureChance:  0,
			RecoveryChance: 0,
		}, nil),
		Executor: executor.NewSimulated(executor.SimulatedConfig{MinStep: 10, MaxStep: 10}, nil),
		LocalNode: &models.ComputeNode{
			ID:   "local-test",
			Name: "api-test-host",
			Capabilities: models.NodeCapabilities{
				CPUCores:    8,
				CPUSpeedGHz: 3.0,
				MemoryGB:    32,
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	router := mux.NewRouter()
	api.NewHandler(sched, nil).RegisterRoutes(router)
	return router, sched
}

func doJSON(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitTask(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, "POST", "/tasks", `{
		"name": "train-resnet",
		"kind": "training",
		"priority": "high",
		"requirements": {"min_cores": 4, "min_memory_gb": 16}
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201. Body: %s", w.Code, w.Body.String())
	}

	var task models.ComputeTask
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if task.ID == "" {
		t.Error("response must carry the assigned task id")
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("status = %s, want pending", task.Status)
	}
	if task.Priority != models.TaskPriorityHigh {
		t.Errorf("priority = %s, want high", task.Priority)
	}
	if task.Requirements == nil || task.Requirements.MinCores != 4 {
		t.Errorf("requirements not echoed: %+v", task.Requirements)
	}
}

func TestSubmitTaskValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doJSON(t, router, "POST", "/tasks", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
	if w := doJSON(t, router, "POST", "/tasks", `{"kind": "training"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", w.Code)
	}
}

func TestListAndFilterTasks(t *testing.T) {
	router, sched := newTestRouter(t)

	first := sched.Submit(models.TaskRequest{Name: "one"})
	sched.Submit(models.TaskRequest{Name: "two"})

	w := doJSON(t, router, "GET", "/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var tasks []models.ComputeTask
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("listed %d tasks, want 2", len(tasks))
	}
	if tasks[0].Name != "one" {
		t.Error("tasks must list in submission order")
	}

	sched.Cancel(first.ID)
	w = doJSON(t, router, "GET", "/tasks?status=pending", "")
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Name != "two" {
		t.Errorf("status filter returned %+v, want only the pending task", tasks)
	}
}

func TestGetTask(t *testing.T) {
	router, sched := newTestRouter(t)
	submitted := sched.Submit(models.TaskRequest{Name: "lookup"})

	w := doJSON(t, router, "GET", "/tasks/"+submitted.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	if w := doJSON(t, router, "GET", "/tasks/unknown-id", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown task: status = %d, want 404", w.Code)
	}
}

func TestCancelTaskEndpoint(t *testing.T) {
	router, sched := newTestRouter(t)
	submitted := sched.Submit(models.TaskRequest{Name: "doomed"})

	w := doJSON(t, router, "POST", "/tasks/"+submitted.ID+"/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var task models.ComputeTask
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusCanceled {
		t.Errorf("status = %s, want canceled", task.Status)
	}

	// repeats conflict instead of flapping state
	if w := doJSON(t, router, "POST", "/tasks/"+submitted.ID+"/cancel", ""); w.Code != http.StatusConflict {
		t.Errorf("second cancel: status = %d, want 409", w.Code)
	}
	if w := doJSON(t, router, "POST", "/tasks/missing/cancel", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown task cancel: status = %d, want 404", w.Code)
	}
}

func TestListNodesIncludesLocal(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, "GET", "/nodes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var nodes []models.ComputeNode
	if err := json.Unmarshal(w.Body.Bytes(), &nodes); err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatalf("listed %d nodes, want just the local node", len(nodes))
	}
	if nodes[0].ID != "local-test" || nodes[0].Kind != models.NodeKindLocal {
		t.Errorf("unexpected node: %+v", nodes[0])
	}

	if w := doJSON(t, router, "GET", "/nodes/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown node: status = %d, want 404", w.Code)
	}
}

func TestCapacityEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, "GET", "/capacity", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var capacity models.AggregateCapacity
	if err := json.Unmarshal(w.Body.Bytes(), &capacity); err != nil {
		t.Fatal(err)
	}
	if capacity.ActiveNodes != 1 || capacity.TotalCores != 8 {
		t.Errorf("capacity = %+v, want the local node's 8 cores", capacity)
	}
}

func TestOptionsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, "GET", "/options", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var opts models.SchedulerOptions
	if err := json.Unmarshal(w.Body.Bytes(), &opts); err != nil {
		t.Fatal(err)
	}
	if opts.MaxConcurrentTasks != models.DefaultSchedulerOptions().MaxConcurrentTasks {
		t.Errorf("options = %+v, want defaults", opts)
	}

	w = doJSON(t, router, "PUT", "/options", `{"max_concurrent_tasks": 2, "load_balancing": "round-robin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &opts); err != nil {
		t.Fatal(err)
	}
	if opts.MaxConcurrentTasks != 2 || opts.LoadBalancing != models.BalanceRoundRobin {
		t.Errorf("updated options = %+v", opts)
	}
	// untouched fields survive the partial update
	if opts.MaxRetries != models.DefaultSchedulerOptions().MaxRetries {
		t.Errorf("MaxRetries = %d changed by unrelated patch", opts.MaxRetries)
	}

	if w := doJSON(t, router, "PUT", "/options", `{"load_balancing": "chaos"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid policy: status = %d, want 400", w.Code)
	}
	if w := doJSON(t, router, "PUT", "/options", `garbage`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	router, sched := newTestRouter(t)
	sched.Submit(models.TaskRequest{Name: "counted"})

	w := doJSON(t, router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["local_node"] != "local-test" {
		t.Errorf("health = %+v", health)
	}

	w = doJSON(t, router, "GET", "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", w.Code)
	}
	var stats scheduler.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TasksSubmitted != 1 {
		t.Errorf("TasksSubmitted = %d, want 1", stats.TasksSubmitted)
	}
}
