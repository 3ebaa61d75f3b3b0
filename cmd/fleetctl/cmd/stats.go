package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/computefleet/fleetd/pkg/scheduler"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show scheduler activity counters",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	var stats scheduler.Stats
	if err := getJSON(fmt.Sprintf("%s/stats", ServerURL()), &stats); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(stats)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Counter", "Value")
	table.Append("Tasks Submitted", fmt.Sprintf("%d", stats.TasksSubmitted))
	table.Append("Tasks Completed", fmt.Sprintf("%d", stats.TasksCompleted))
	table.Append("Tasks Failed", fmt.Sprintf("%d", stats.TasksFailed))
	table.Append("Tasks Canceled", fmt.Sprintf("%d", stats.TasksCanceled))
	table.Append("Tasks Retried", fmt.Sprintf("%d", stats.TasksRetried))
	table.Append("Tasks Timed Out", fmt.Sprintf("%d", stats.TasksTimedOut))
	table.Append("Assignments", fmt.Sprintf("%d", stats.Assignments))
	table.Append("Nodes Discovered", fmt.Sprintf("%d", stats.NodesDiscovered))
	table.Append("Probe Failures", fmt.Sprintf("%d", stats.ProbeFailures))
	table.Render()
	return nil
}
