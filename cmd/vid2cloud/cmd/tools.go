package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jmuozan/vid2cloud/pkg/hardware"
	"github.com/jmuozan/vid2cloud/pkg/models"
	"github.com/jmuozan/vid2cloud/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show external tool and compute device availability",
	Long: `Probes the external tools each pipeline stage depends on and the
compute devices segmentation can target, and reports what a run on this
system would have available.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	registry := tools.NewRegistry(toolOverrides())

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Stage", "Tool", "Available")

	rows := []struct {
		stage string
		tool  tools.Tool
	}{
		{models.StageExtract, registry.Extractor},
		{models.StageSegment, registry.Segmenter},
		{models.StageMask, registry.Masker},
		{models.StageReconstruct + " (native)", registry.Reconstructors[models.BackendColmap]},
		{models.StageReconstruct + " (embedded)", registry.Reconstructors[models.BackendPycolmap]},
	}
	for _, r := range rows {
		table.Append(r.stage, r.tool.Name(), fmt.Sprintf("%t", r.tool.Available()))
	}
	table.Render()

	caps := hardware.Detect()
	fmt.Printf("\nCompute: cuda=%t mps=%t cpu_threads=%d ram=%.1f GB (best device: %s)\n",
		caps.HasCUDA, caps.HasMPS, caps.CPUThreads,
		float64(caps.RAMBytes)/(1024*1024*1024), caps.BestDevice())
	if caps.GPUName != "" {
		fmt.Printf("GPU: %s\n", caps.GPUName)
	}
	return nil
}
