package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/computefleet/fleetd/pkg/models"
)

var (
	optAutoDiscovery      string
	optMaxConcurrent      int
	optTaskTimeout        int
	optPriorityBoost      string
	optLoadBalancing      string
	optRetryFailed        string
	optMaxRetries         int
	optCheckpointInterval int
)

// optionsCmd represents the options command
var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "View and tune scheduler options",
	Long:  `Inspect the live scheduler configuration or change parts of it at runtime. Only the flags you pass are changed; everything else keeps its current value.`,
}

var optionsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the live scheduler options",
	RunE:  runOptionsGet,
}

var optionsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update scheduler options",
	RunE:  runOptionsSet,
}

func init() {
	rootCmd.AddCommand(optionsCmd)
	optionsCmd.AddCommand(optionsGetCmd)
	optionsCmd.AddCommand(optionsSetCmd)

	optionsSetCmd.Flags().StringVar(&optAutoDiscovery, "auto-discovery", "", "enable node discovery: true or false")
	optionsSetCmd.Flags().IntVar(&optMaxConcurrent, "max-concurrent-tasks", 0, "concurrency cap for running tasks")
	optionsSetCmd.Flags().IntVar(&optTaskTimeout, "task-timeout", -1, "global task timeout in seconds (0 disables)")
	optionsSetCmd.Flags().StringVar(&optPriorityBoost, "priority-boost", "", "age-based priority promotion: true or false")
	optionsSetCmd.Flags().StringVar(&optLoadBalancing, "load-balancing", "", "policy: round-robin, least-loaded, fastest-node")
	optionsSetCmd.Flags().StringVar(&optRetryFailed, "retry-failed", "", "requeue failed tasks: true or false")
	optionsSetCmd.Flags().IntVar(&optMaxRetries, "max-retries", -1, "retry budget per task")
	optionsSetCmd.Flags().IntVar(&optCheckpointInterval, "checkpoint-interval", -1, "checkpoint interval in seconds (0 disables)")
}

func runOptionsGet(cmd *cobra.Command, args []string) error {
	var opts models.SchedulerOptions
	if err := getJSON(fmt.Sprintf("%s/options", ServerURL()), &opts); err != nil {
		return err
	}
	return renderOptions(opts)
}

func runOptionsSet(cmd *cobra.Command, args []string) error {
	patch := models.OptionsPatch{}

	if optAutoDiscovery != "" {
		v, err := parseBool(optAutoDiscovery, "auto-discovery")
		if err != nil {
			return err
		}
		patch.AutoDiscovery = &v
	}
	if optMaxConcurrent > 0 {
		patch.MaxConcurrentTasks = &optMaxConcurrent
	}
	if optTaskTimeout >= 0 {
		patch.TaskTimeoutSec = &optTaskTimeout
	}
	if optPriorityBoost != "" {
		v, err := parseBool(optPriorityBoost, "priority-boost")
		if err != nil {
			return err
		}
		patch.PriorityBoost = &v
	}
	if optLoadBalancing != "" {
		policy := models.BalancingPolicy(optLoadBalancing)
		patch.LoadBalancing = &policy
	}
	if optRetryFailed != "" {
		v, err := parseBool(optRetryFailed, "retry-failed")
		if err != nil {
			return err
		}
		patch.RetryFailed = &v
	}
	if optMaxRetries >= 0 {
		patch.MaxRetries = &optMaxRetries
	}
	if optCheckpointInterval >= 0 {
		patch.CheckpointIntervalSec = &optCheckpointInterval
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/options", ServerURL()), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
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

	var opts models.SchedulerOptions
	if err := json.Unmarshal(body, &opts); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return renderOptions(opts)
}

func renderOptions(opts models.SchedulerOptions) error {
	if IsJSONOutput() {
		return printJSON(opts)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Option", "Value")
	table.Append("Auto Discovery", fmt.Sprintf("%v", opts.AutoDiscovery))
	table.Append("Max Concurrent Tasks", fmt.Sprintf("%d", opts.MaxConcurrentTasks))
	table.Append("Task Timeout", fmt.Sprintf("%ds", opts.TaskTimeoutSec))
	table.Append("Priority Boost", fmt.Sprintf("%v", opts.PriorityBoost))
	table.Append("Load Balancing", string(opts.LoadBalancing))
	table.Append("Retry Failed", fmt.Sprintf("%v", opts.RetryFailed))
	table.Append("Max Retries", fmt.Sprintf("%d", opts.MaxRetries))
	table.Append("Checkpoint Interval", fmt.Sprintf("%ds", opts.CheckpointIntervalSec))
	table.Render()
	return nil
}

func parseBool(value, flag string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "yes", "on":
		return true, nil
	case "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid value for --%s: %s (want true or false)", flag, value)
}
