package models

import (
	"fmt"
	"sort"
	"strings"
)

// Stage names, in pipeline order
const (
	StageExtract     = "extract"
	StageSegment     = "segment"
	StageMask        = "mask"
	StageReconstruct = "reconstruct"
)

// Compute devices
const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
	DeviceCPU  = "cpu"
)

// Reconstruction backends
const (
	BackendColmap   = "colmap"   // native toolchain binary
	BackendPycolmap = "pycolmap" // library-embedded equivalent
)

// Segmentation model sizes
const (
	ModelSizeLarge = "large"
	ModelSizeSmall = "small"
)

// StageConfig is the typed parameter set for one stage attempt.
// Every previously-interactive decision point of the underlying tools is
// pre-filled here; no stage may block on interactive input.
type StageConfig struct {
	Device           string `json:"device,omitempty" mapstructure:"device"`
	Backend          string `json:"backend,omitempty" mapstructure:"backend"`
	ModelSize        string `json:"model_size,omitempty" mapstructure:"model_size"`
	FrameRate        int    `json:"frame_rate,omitempty" mapstructure:"frame_rate"`
	KeyframeInterval int    `json:"keyframe_interval,omitempty" mapstructure:"keyframe_interval"`
	RefinementSteps  int    `json:"refinement_steps,omitempty" mapstructure:"refinement_steps"`
	// AcceptDegraded allows running an oversized model on under-provisioned
	// hardware instead of falling back to the smaller model.
	AcceptDegraded bool `json:"accept_degraded,omitempty" mapstructure:"accept_degraded"`
	// DegradeToCPU continues the remaining frames on CPU after a mid-run
	// memory exhaustion rather than aborting the stage.
	DegradeToCPU bool `json:"degrade_to_cpu,omitempty" mapstructure:"degrade_to_cpu"`
}

// Validate checks value ranges before any tool invocation
func (c StageConfig) Validate() error {
	if c.FrameRate < 0 {
		return fmt.Errorf("frame_rate must be >= 0, got %d", c.FrameRate)
	}
	if c.KeyframeInterval < 0 {
		return fmt.Errorf("keyframe_interval must be >= 0, got %d", c.KeyframeInterval)
	}
	if c.RefinementSteps < 0 {
		return fmt.Errorf("refinement_steps must be >= 0, got %d", c.RefinementSteps)
	}
	switch c.Device {
	case "", DeviceAuto, DeviceCUDA, DeviceMPS, DeviceCPU:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	switch c.Backend {
	case "", BackendColmap, BackendPycolmap:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.ModelSize {
	case "", ModelSizeLarge, ModelSizeSmall:
	default:
		return fmt.Errorf("unknown model_size %q", c.ModelSize)
	}
	return nil
}

// Signature returns a stable key identifying the configuration, used by the
// fallback resolver to guarantee no configuration is tried twice.
func (c StageConfig) Signature() string {
	parts := []string{
		"device=" + c.Device,
		"backend=" + c.Backend,
		"model_size=" + c.ModelSize,
		fmt.Sprintf("frame_rate=%d", c.FrameRate),
		fmt.Sprintf("keyframe_interval=%d", c.KeyframeInterval),
		fmt.Sprintf("refinement_steps=%d", c.RefinementSteps),
		fmt.Sprintf("degrade_to_cpu=%t", c.DegradeToCPU),
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
