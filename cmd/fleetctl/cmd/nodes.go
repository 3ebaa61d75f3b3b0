package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/computefleet/fleetd/pkg/models"
)

// nodesCmd represents the nodes command
var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Inspect compute nodes",
	Long:  `Commands for listing and inspecting the compute nodes known to the scheduler.`,
}

var nodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered nodes",
	RunE:  runNodesList,
}

var nodesDescribeCmd = &cobra.Command{
	Use:   "describe <node-id>",
	Short: "Get detailed information about a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodesDescribe,
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	nodesCmd.AddCommand(nodesListCmd)
	nodesCmd.AddCommand(nodesDescribeCmd)
}

func runNodesList(cmd *cobra.Command, args []string) error {
	var nodes []models.ComputeNode
	if err := getJSON(fmt.Sprintf("%s/nodes", ServerURL()), &nodes); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(nodes)
	}

	if len(nodes) == 0 {
		fmt.Println("No nodes registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Kind", "Status", "Cores", "Memory", "GPU", "CPU Load")

	for _, node := range nodes {
		gpuInfo := "No"
		if node.HasGPU() {
			gpuInfo = fmt.Sprintf("%s (%.0f GB)", node.Capabilities.GPU.Name, node.Capabilities.GPU.MemoryGB)
		}
		table.Append(
			shortID(node.ID),
			node.Name,
			string(node.Kind),
			string(node.Status),
			fmt.Sprintf("%d", node.Capabilities.CPUCores),
			fmt.Sprintf("%.0f GB", node.Capabilities.MemoryGB),
			gpuInfo,
			fmt.Sprintf("%.0f%%", node.Performance.CPUUsagePct),
		)
	}
	table.Render()
	fmt.Printf("\nTotal nodes: %d\n", len(nodes))
	return nil
}

func runNodesDescribe(cmd *cobra.Command, args []string) error {
	var node models.ComputeNode
	if err := getJSON(fmt.Sprintf("%s/nodes/%s", ServerURL(), args[0]), &node); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(node)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	table.Append("Node ID", node.ID)
	table.Append("Name", node.Name)
	table.Append("Kind", string(node.Kind))
	table.Append("Status", string(node.Status))
	if node.Location != "" {
		table.Append("Location", node.Location)
	}
	table.Append("CPU", fmt.Sprintf("%d cores @ %.1f GHz", node.Capabilities.CPUCores, node.Capabilities.CPUSpeedGHz))
	table.Append("Memory", fmt.Sprintf("%.1f GB", node.Capabilities.MemoryGB))
	table.Append("Disk", fmt.Sprintf("%.1f GB", node.Capabilities.DiskGB))
	if node.HasGPU() {
		table.Append("GPU", fmt.Sprintf("%s, %.0f GB, %d cores",
			node.Capabilities.GPU.Name, node.Capabilities.GPU.MemoryGB, node.Capabilities.GPU.Cores))
	} else {
		table.Append("GPU", "None")
	}
	table.Append("CPU Usage", fmt.Sprintf("%.1f%%", node.Performance.CPUUsagePct))
	table.Append("Memory Usage", fmt.Sprintf("%.1f%%", node.Performance.MemoryUsagePct))
	table.Append("Load Average", fmt.Sprintf("%.2f / %.2f / %.2f",
		node.Performance.LoadAverage[0], node.Performance.LoadAverage[1], node.Performance.LoadAverage[2]))
	table.Append("Last Seen", node.LastSeen.Format(time.RFC3339))
	table.Append("Registered", node.RegisteredAt.Format(time.RFC3339))

	table.Render()
	return nil
}

// shortID trims a UUID down to its first segment for table display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
