package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for inspecting and initializing the pipeline stage configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective stage configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to $HOME/.vid2cloud/config.yaml",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// effectiveConfig is the resolved stage parameter set after flag, env and
// file merging
type effectiveConfig struct {
	FrameRate        int    `yaml:"frame_rate"`
	Device           string `yaml:"device"`
	Backend          string `yaml:"backend"`
	ModelSize        string `yaml:"model_size"`
	KeyframeInterval int    `yaml:"keyframe_interval"`
	RefinementSteps  int    `yaml:"refinement_steps"`
	AcceptDegraded   bool   `yaml:"accept_degraded"`
	StageTimeout     string `yaml:"stage_timeout"`
	WorkDir          string `yaml:"work_dir,omitempty"`
}

func currentConfig() effectiveConfig {
	return effectiveConfig{
		FrameRate:        viper.GetInt("frame_rate"),
		Device:           viper.GetString("device"),
		Backend:          viper.GetString("backend"),
		ModelSize:        viper.GetString("model_size"),
		KeyframeInterval: viper.GetInt("keyframe_interval"),
		RefinementSteps:  viper.GetInt("refinement_steps"),
		AcceptDegraded:   viper.GetBool("accept_degraded"),
		StageTimeout:     viper.GetString("stage_timeout"),
		WorkDir:          viper.GetString("work_dir"),
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(currentConfig())
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	configDir := filepath.Join(home, ".vid2cloud")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := yaml.Marshal(currentConfig())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
