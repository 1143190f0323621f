package tools

import (
	"os/exec"

	"github.com/jmuozan/vid2cloud/pkg/models"
)

// Tool builds the command line for one external pipeline stage. The
// orchestrator depends only on each tool's input/output file contract,
// never on its internals.
type Tool interface {
	// Name returns the tool name for logs and diagnostics
	Name() string

	// Available checks whether the tool can be invoked on this system
	Available() bool

	// BuildCommand returns the binary and arguments for one invocation
	BuildCommand(inv Invocation) (string, []string, error)
}

// Invocation carries the resolved inputs for one stage attempt
type Invocation struct {
	InputPath string
	OutputDir string
	Config    models.StageConfig
}

// Registry holds the tool for each stage, keyed the way the pipeline
// stages are named. Reconstruction carries one tool per backend.
type Registry struct {
	Extractor      Tool
	Segmenter      Tool
	Masker         Tool
	Reconstructors map[string]Tool
}

// Overrides remaps tool binary names, e.g. to pin a specific ffmpeg build
// or point tests at stub executables. Keys are stage names; reconstruction
// backends use their backend name.
type Overrides map[string]string

func (o Overrides) binary(key, fallback string) string {
	if o == nil {
		return fallback
	}
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return fallback
}

// NewRegistry builds the default tool registry with optional binary overrides
func NewRegistry(overrides Overrides) *Registry {
	return &Registry{
		Extractor: NewFFmpegExtractor(overrides.binary(models.StageExtract, "ffmpeg")),
		Segmenter: NewSegmenter(overrides.binary(models.StageSegment, "sam2-video")),
		Masker:    NewMasker(overrides.binary(models.StageMask, "mask-frames")),
		Reconstructors: map[string]Tool{
			models.BackendColmap:   NewColmapReconstructor(overrides.binary(models.BackendColmap, "colmap")),
			models.BackendPycolmap: NewPycolmapReconstructor(overrides.binary(models.BackendPycolmap, "python3")),
		},
	}
}

// ForStage returns the tool serving the named stage, honoring the
// reconstruction backend selected in the config.
func (r *Registry) ForStage(stage string, cfg models.StageConfig) Tool {
	switch stage {
	case models.StageExtract:
		return r.Extractor
	case models.StageSegment:
		return r.Segmenter
	case models.StageMask:
		return r.Masker
	case models.StageReconstruct:
		backend := cfg.Backend
		if backend == "" {
			backend = models.BackendColmap
		}
		return r.Reconstructors[backend]
	default:
		return nil
	}
}

// binaryOnPath is the default availability probe
func binaryOnPath(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
