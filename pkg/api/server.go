package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/computefleet/fleetd/pkg/logging"
	"github.com/computefleet/fleetd/pkg/models"
	"github.com/computefleet/fleetd/pkg/registry"
	"github.com/computefleet/fleetd/pkg/scheduler"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fleetd_http_requests_total",
	Help: "HTTP requests handled by the fleet API",
}, []string{"method", "route", "code"})

// Handler exposes the scheduler over HTTP
type Handler struct {
	sched  *scheduler.Scheduler
	logger *logging.Logger
}

// NewHandler creates the API handler
func NewHandler(sched *scheduler.Scheduler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Handler{sched: sched, logger: logger}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(instrument)

	r.HandleFunc("/tasks", h.SubmitTask).Methods("POST")
	r.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	r.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/tasks/{id}/cancel", h.CancelTask).Methods("POST")

	r.HandleFunc("/nodes", h.ListNodes).Methods("GET")
	r.HandleFunc("/nodes/{id}", h.GetNode).Methods("GET")

	r.HandleFunc("/capacity", h.GetCapacity).Methods("GET")
	r.HandleFunc("/options", h.GetOptions).Methods("GET")
	r.HandleFunc("/options", h.UpdateOptions).Methods("PUT")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// instrument counts requests per route and status code
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// SubmitTask enqueues a new task. Submission always succeeds when the
// body parses; unsatisfiable requirements leave the task pending.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Task name is required", http.StatusBadRequest)
		return
	}

	task := h.sched.Submit(req)
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks returns all tasks in submission order. An optional
// ?status= filter narrows the result.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.sched.ListTasks()

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]*models.ComputeTask, 0, len(tasks))
		for _, task := range tasks {
			if string(task.Status) == status {
				filtered = append(filtered, task)
			}
		}
		tasks = filtered
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask returns a single task by id
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, err := h.sched.GetTask(id)
	if err != nil {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CancelTask cancels a pending or running task. Canceling a task that
// already reached a terminal state reports 409 without changing it.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.sched.GetTask(id); err != nil {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	if !h.sched.Cancel(id) {
		http.Error(w, "Task already finished", http.StatusConflict)
		return
	}
	task, _ := h.sched.GetTask(id)
	writeJSON(w, http.StatusOK, task)
}

// ListNodes returns all registered nodes
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.ListNodes())
}

// GetNode returns a single node by id
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, err := h.sched.GetNode(id)
	if err != nil {
		if errors.Is(err, registry.ErrNodeNotFound) {
			http.Error(w, "Node not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// GetCapacity returns aggregate capacity over online nodes
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Capacity())
}

// GetOptions returns the live scheduler options
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Options())
}

// UpdateOptions merges a partial options document into the live
// configuration and returns the full result
func (h *Handler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	var patch models.OptionsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts, err := h.sched.UpdateOptions(patch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// GetStats returns scheduler activity counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Stats())
}

// Health reports daemon liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"local_node":     h.sched.LocalNodeID(),
		"uptime_seconds": int(h.sched.Uptime().Seconds()),
		"time":           time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("Error encoding response:", err)
	}
}
