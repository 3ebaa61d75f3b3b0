package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/computefleet/fleetd/pkg/models"
)

// capacityCmd represents the capacity command
var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Show aggregate fleet capacity",
	Long:  `Display total compute capacity across all online nodes.`,
	RunE:  runCapacity,
}

func init() {
	rootCmd.AddCommand(capacityCmd)
}

func runCapacity(cmd *cobra.Command, args []string) error {
	var capacity models.AggregateCapacity
	if err := getJSON(fmt.Sprintf("%s/capacity", ServerURL()), &capacity); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(capacity)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	table.Append("Online Nodes", fmt.Sprintf("%d", capacity.ActiveNodes))
	table.Append("Total Cores", fmt.Sprintf("%d", capacity.TotalCores))
	table.Append("Total Memory", fmt.Sprintf("%.1f GB", capacity.TotalMemoryGB))
	table.Append("Total GPU Cores", fmt.Sprintf("%d", capacity.TotalGPUCores))
	table.Render()
	return nil
}
