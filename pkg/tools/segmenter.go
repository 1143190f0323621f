package tools

import (
	"fmt"

	"github.com/jmuozan/vid2cloud/pkg/models"
)

// ResultPointerName is the pointer file the segmenter and reconstruction
// backends are contracted to write, naming their primary output.
const ResultPointerName = "result.txt"

// MasksDirName is the masks subdirectory inside the segmentation output
const MasksDirName = "masks"

// Segmenter runs the video segmentation model over an extracted frame
// sequence and writes per-frame masks.
type Segmenter struct {
	binary            string
	availableOverride func() bool
}

// NewSegmenter creates the segmentation tool wrapper
func NewSegmenter(binary string) *Segmenter {
	return &Segmenter{binary: binary}
}

// Name returns the tool name
func (s *Segmenter) Name() string {
	return "sam2-video"
}

// Available checks for the segmentation tool binary
func (s *Segmenter) Available() bool {
	if s.availableOverride != nil {
		return s.availableOverride()
	}
	return binaryOnPath(s.binary)
}

// BuildCommand generates the segmentation command. Every historically
// interactive prompt of the tool is pre-filled from the config.
func (s *Segmenter) BuildCommand(inv Invocation) (string, []string, error) {
	if inv.InputPath == "" {
		return "", nil, fmt.Errorf("segmenter: no input frame directory")
	}

	device := inv.Config.Device
	if device == "" || device == models.DeviceAuto {
		device = models.DeviceCPU
	}
	modelSize := inv.Config.ModelSize
	if modelSize == "" {
		modelSize = models.ModelSizeLarge
	}
	keyframe := inv.Config.KeyframeInterval
	if keyframe <= 0 {
		keyframe = 1
	}

	args := []string{
		"--input", inv.InputPath,
		"--output", inv.OutputDir,
		"--device", device,
		"--model-size", modelSize,
		"--keyframe-interval", fmt.Sprintf("%d", keyframe),
		"--refinement-steps", fmt.Sprintf("%d", inv.Config.RefinementSteps),
		"--non-interactive",
	}
	if inv.Config.DegradeToCPU {
		args = append(args, "--offload-to-cpu")
	}
	return s.binary, args, nil
}
