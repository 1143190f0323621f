package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vid2cloud",
	Short: "Video to 3D point-cloud pipeline orchestrator",
	Long: `vid2cloud orchestrates a four-stage pipeline that turns a raw video
into a 3D point cloud: frame extraction, segmentation, mask application,
and 3D reconstruction. Each stage runs an external tool; the orchestrator
handles sequencing, device and backend fallback, and artifact resolution.`,
}

// Execute runs the command tree and returns the process exit code.
// Run-level statuses map to distinct codes so callers can tell "done"
// from "done with degraded output" from "did not run".
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return ExitFailed
	}
	return exitCode
}

// exitCode is set by the run command based on the final run status
var exitCode int

// Exit codes for run-level status classification
const (
	ExitCompleted          = 0
	ExitFailed             = 1
	ExitPartiallyCompleted = 2
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vid2cloud/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// initConfig reads in config file and VID2CLOUD_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(ExitFailed)
		}

		configDir := filepath.Join(home, ".vid2cloud")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("vid2cloud")
	viper.AutomaticEnv()

	// Stage parameter defaults: every previously-interactive decision
	// point of the underlying tools, pre-filled.
	viper.SetDefault("frame_rate", 10)
	viper.SetDefault("device", "auto")
	viper.SetDefault("backend", "colmap")
	viper.SetDefault("model_size", "large")
	viper.SetDefault("keyframe_interval", 1)
	viper.SetDefault("refinement_steps", 0)
	viper.SetDefault("accept_degraded", false)
	viper.SetDefault("stage_timeout", "30m")
	viper.SetDefault("work_dir", "")

	// Config file is optional
	viper.ReadInConfig()
}
