package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/computefleet/fleetd/pkg/models"
)

var (
	taskKind         string
	taskPriority     string
	taskMinCores     int
	taskMinMemory    float64
	taskNeedsGPU     bool
	taskMinGPUMemory float64
	taskEstDuration  int
	taskStatusFilter string
)

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage compute tasks",
	Long:  `Commands for submitting, tracking and canceling tasks on the scheduler.`,
}

var tasksSubmitCmd = &cobra.Command{
	Use:   "submit <name>",
	Short: "Submit a new task",
	Long:  `Submit a task with optional resource requirements. Tasks whose requirements no node can satisfy stay pending until a matching node joins the fleet.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksSubmit,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTasksList,
}

var tasksDescribeCmd = &cobra.Command{
	Use:   "describe <task-id>",
	Short: "Get detailed information about a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDescribe,
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending or running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCancel,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksSubmitCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksDescribeCmd)
	tasksCmd.AddCommand(tasksCancelCmd)

	tasksSubmitCmd.Flags().StringVar(&taskKind, "kind", "processing", "task kind: training, inference, processing, rendering, simulation")
	tasksSubmitCmd.Flags().StringVar(&taskPriority, "priority", "normal", "task priority: low, normal, high, critical")
	tasksSubmitCmd.Flags().IntVar(&taskMinCores, "min-cores", 0, "minimum CPU cores required")
	tasksSubmitCmd.Flags().Float64Var(&taskMinMemory, "min-memory", 0, "minimum memory in GB required")
	tasksSubmitCmd.Flags().BoolVar(&taskNeedsGPU, "gpu", false, "require a GPU")
	tasksSubmitCmd.Flags().Float64Var(&taskMinGPUMemory, "min-gpu-memory", 0, "minimum GPU memory in GB required")
	tasksSubmitCmd.Flags().IntVar(&taskEstDuration, "estimated-duration", 0, "estimated duration in seconds, used for the timeout deadline")

	tasksListCmd.Flags().StringVar(&taskStatusFilter, "status", "", "filter by status: pending, running, completed, failed, canceled")
}

func runTasksSubmit(cmd *cobra.Command, args []string) error {
	req := models.TaskRequest{
		Name:     args[0],
		Kind:     models.TaskKind(taskKind),
		Priority: models.TaskPriority(taskPriority),
	}
	if taskMinCores > 0 || taskMinMemory > 0 || taskNeedsGPU || taskMinGPUMemory > 0 || taskEstDuration > 0 {
		req.Requirements = &models.TaskRequirements{
			MinCores:             taskMinCores,
			MinMemoryGB:          taskMinMemory,
			GPU:                  taskNeedsGPU,
			MinGPUMemoryGB:       taskMinGPUMemory,
			EstimatedDurationSec: taskEstDuration,
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/tasks", ServerURL()), "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to connect to fleetd API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var task models.ComputeTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(task)
	}
	fmt.Printf("Task submitted: %s\n", task.ID)
	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/tasks", ServerURL())
	if taskStatusFilter != "" {
		url += "?status=" + taskStatusFilter
	}

	var tasks []models.ComputeTask
	if err := getJSON(url, &tasks); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Kind", "Priority", "Status", "Progress", "Node", "Attempts")

	for _, task := range tasks {
		table.Append(
			shortID(task.ID),
			task.Name,
			string(task.Kind),
			string(task.Priority),
			string(task.Status),
			fmt.Sprintf("%d%%", task.Progress),
			shortID(task.NodeID),
			fmt.Sprintf("%d", task.Attempts),
		)
	}
	table.Render()
	fmt.Printf("\nTotal tasks: %d\n", len(tasks))
	return nil
}

func runTasksDescribe(cmd *cobra.Command, args []string) error {
	var task models.ComputeTask
	if err := getJSON(fmt.Sprintf("%s/tasks/%s", ServerURL(), args[0]), &task); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(task)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	table.Append("Task ID", task.ID)
	table.Append("Name", task.Name)
	table.Append("Kind", string(task.Kind))
	table.Append("Priority", string(task.Priority))
	table.Append("Status", string(task.Status))
	table.Append("Progress", fmt.Sprintf("%d%%", task.Progress))
	table.Append("Attempts", fmt.Sprintf("%d", task.Attempts))
	if task.NodeID != "" {
		table.Append("Node", task.NodeID)
	}
	if req := task.Requirements; req != nil {
		if req.MinCores > 0 {
			table.Append("Min Cores", fmt.Sprintf("%d", req.MinCores))
		}
		if req.MinMemoryGB > 0 {
			table.Append("Min Memory", fmt.Sprintf("%.1f GB", req.MinMemoryGB))
		}
		if req.GPU {
			table.Append("Requires GPU", "Yes")
		}
		if req.MinGPUMemoryGB > 0 {
			table.Append("Min GPU Memory", fmt.Sprintf("%.1f GB", req.MinGPUMemoryGB))
		}
		if req.EstimatedDurationSec > 0 {
			table.Append("Estimated Duration", fmt.Sprintf("%ds", req.EstimatedDurationSec))
		}
	}
	table.Append("Created", task.CreatedAt.Format(time.RFC3339))
	if task.StartedAt != nil {
		table.Append("Started", task.StartedAt.Format(time.RFC3339))
	}
	if task.CompletedAt != nil {
		table.Append("Finished", task.CompletedAt.Format(time.RFC3339))
	}
	if task.Result != "" {
		table.Append("Result", task.Result)
	}
	if task.Error != "" {
		table.Append("Error", task.Error)
	}

	table.Render()
	return nil
}

func runTasksCancel(cmd *cobra.Command, args []string) error {
	resp, err := http.Post(fmt.Sprintf("%s/tasks/%s/cancel", ServerURL(), args[0]), "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to fleetd API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var task models.ComputeTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(task)
	}
	fmt.Printf("Task canceled: %s\n", task.ID)
	return nil
}
