package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmuozan/vid2cloud/pkg/hardware"
	"github.com/jmuozan/vid2cloud/pkg/logging"
	"github.com/jmuozan/vid2cloud/pkg/metrics"
	"github.com/jmuozan/vid2cloud/pkg/models"
	"github.com/jmuozan/vid2cloud/pkg/pipeline"
	"github.com/jmuozan/vid2cloud/pkg/shutdown"
	"github.com/jmuozan/vid2cloud/pkg/tools"
)

var (
	runDevice           string
	runBackend          string
	runModelSize        string
	runKeyframeInterval int
	runRefinementSteps  int
	runAcceptDegraded   bool
	runStageTimeout     time.Duration
	runWorkDir          string
	runMetricsListen    string
)

var runCmd = &cobra.Command{
	Use:   "run <video> [framerate]",
	Short: "Run the full video-to-point-cloud pipeline",
	Long: `Runs extraction, segmentation, masking and reconstruction on the given
video. The optional framerate argument sets the extraction frame rate
(default 10). Exit code 0 means Completed, 2 PartiallyCompleted, 1 Failed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDevice, "device", "", "compute device: auto, cuda, mps, cpu")
	runCmd.Flags().StringVar(&runBackend, "backend", "", "reconstruction backend: colmap, pycolmap")
	runCmd.Flags().StringVar(&runModelSize, "model-size", "", "segmentation model size: large, small")
	runCmd.Flags().IntVar(&runKeyframeInterval, "keyframe-interval", 0, "segmentation keyframe interval")
	runCmd.Flags().IntVar(&runRefinementSteps, "refinement-steps", -1, "reconstruction refinement steps")
	runCmd.Flags().BoolVar(&runAcceptDegraded, "accept-degraded", false, "run oversized models at degraded performance instead of falling back")
	runCmd.Flags().DurationVar(&runStageTimeout, "timeout", 0, "per-stage attempt timeout (0 uses config default)")
	runCmd.Flags().StringVar(&runWorkDir, "work-dir", "", "base directory for the run working directory")
	runCmd.Flags().StringVar(&runMetricsListen, "metrics-listen", "", "expose Prometheus metrics on this address while the run is in flight")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	videoPath := args[0]
	frameRate := viper.GetInt("frame_rate")
	if len(args) == 2 {
		fr, err := strconv.Atoi(args[1])
		if err != nil || fr <= 0 {
			return fmt.Errorf("invalid framerate %q", args[1])
		}
		frameRate = fr
	}

	opts := pipeline.Options{
		BaseDir:          firstNonEmpty(runWorkDir, viper.GetString("work_dir")),
		FrameRate:        frameRate,
		Device:           firstNonEmpty(runDevice, viper.GetString("device")),
		Backend:          firstNonEmpty(runBackend, viper.GetString("backend")),
		ModelSize:        firstNonEmpty(runModelSize, viper.GetString("model_size")),
		KeyframeInterval: runKeyframeInterval,
		RefinementSteps:  runRefinementSteps,
		AcceptDegraded:   runAcceptDegraded || viper.GetBool("accept_degraded"),
		StageTimeout:     runStageTimeout,
		ToolOverrides:    toolOverrides(),
		Log:              logging.NewLogger(logging.ParseLevel(logLevel), false),
		Caps:             hardware.Detect(),
	}
	if opts.KeyframeInterval == 0 {
		opts.KeyframeInterval = viper.GetInt("keyframe_interval")
	}
	if opts.RefinementSteps < 0 {
		opts.RefinementSteps = viper.GetInt("refinement_steps")
	}
	if opts.StageTimeout == 0 {
		opts.StageTimeout = viper.GetDuration("stage_timeout")
	}

	var collector *metrics.Collector
	if runMetricsListen != "" {
		collector = metrics.NewCollector()
		srv := collector.Serve(runMetricsListen)
		defer srv.Close()
		opts.Metrics = collector
	}

	controller, err := pipeline.NewController(videoPath, opts)
	if err != nil {
		exitCode = ExitFailed
		return err
	}

	mgr := shutdown.New(10 * time.Second)
	ctx, cancel := mgr.WatchContext(context.Background())
	defer cancel()

	run, runErr := controller.Run(ctx)
	printRunSummary(run)

	switch run.Status {
	case models.RunStatusCompleted:
		exitCode = ExitCompleted
	case models.RunStatusPartiallyCompleted:
		exitCode = ExitPartiallyCompleted
	default:
		exitCode = ExitFailed
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Run ended %s: %v\n", run.Status, runErr)
	}
	return nil
}

// printRunSummary renders the stage trace and resolved artifacts
func printRunSummary(run *models.PipelineRun) {
	fmt.Printf("\nRun %s: %s\n", run.ID, run.Status)
	fmt.Printf("Working directory: %s\n\n", run.WorkDir)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Stage", "Artifact", "Provenance")
	for _, art := range run.Artifacts {
		table.Append(art.Stage, art.Path, string(art.Provenance))
	}
	table.Render()

	if len(run.StateTransitions) > 0 {
		fmt.Println("\nState transitions:")
		for _, t := range run.StateTransitions {
			fmt.Printf("  %s -> %s (%s)\n", t.From, t.To, t.Reason)
		}
	}
}

// toolOverrides reads tool binary overrides from configuration
func toolOverrides() tools.Overrides {
	o := tools.Overrides{}
	for _, key := range []string{
		models.StageExtract, models.StageSegment, models.StageMask,
		models.BackendColmap, models.BackendPycolmap,
	} {
		if v := viper.GetString("tools." + key); v != "" {
			o[key] = v
		}
	}
	return o
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
