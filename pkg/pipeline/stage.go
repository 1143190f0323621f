package pipeline

import (
	"time"

	"github.com/jmuozan/vid2cloud/pkg/models"
)

// Stage is an ordered pipeline step definition. Stage definitions are
// immutable and shared across runs.
type Stage struct {
	Name string
	Kind models.ArtifactKind

	// Mandatory stages fail the whole run when exhausted; best-effort
	// stages leave the run PartiallyCompleted.
	Mandatory bool

	// Timeout bounds one attempt; zero means no limit. A stage exceeding
	// its allotted time is classified as Failed and handed to the
	// fallback resolver like any other process failure.
	Timeout time.Duration

	// OutputDir is where the stage's tool writes
	OutputDir func(ws *Workspace) string

	// ArtifactDir is where the locator resolves outputs; for segmentation
	// this is the masks subdirectory rather than the stage output root.
	ArtifactDir func(ws *Workspace) string

	// Pattern matches artifact files of the expected kind inside ArtifactDir
	Pattern string

	Policy *FallbackPolicy
}

// DefaultStages returns the four pipeline stages in execution order
func DefaultStages(timeout time.Duration) []*Stage {
	return []*Stage{
		{
			Name:        models.StageExtract,
			Kind:        models.ArtifactFrameDir,
			Mandatory:   true,
			Timeout:     timeout,
			OutputDir:   (*Workspace).FramesDir,
			ArtifactDir: (*Workspace).FramesDir,
			Pattern:     "*.png",
			Policy:      ExtractionPolicy(),
		},
		{
			Name:        models.StageSegment,
			Kind:        models.ArtifactMaskSet,
			Mandatory:   true,
			Timeout:     timeout,
			OutputDir:   (*Workspace).SegmentationDir,
			ArtifactDir: (*Workspace).MasksDir,
			Pattern:     "*.png",
			Policy:      SegmentationPolicy(),
		},
		{
			Name:        models.StageMask,
			Kind:        models.ArtifactMaskSet,
			Mandatory:   false,
			Timeout:     timeout,
			OutputDir:   (*Workspace).MaskedDir,
			ArtifactDir: (*Workspace).MaskedDir,
			Pattern:     "*.png",
			Policy:      MaskingPolicy(),
		},
		{
			Name:        models.StageReconstruct,
			Kind:        models.ArtifactPointCloud,
			Mandatory:   false,
			Timeout:     timeout,
			OutputDir:   (*Workspace).ReconstructionDir,
			ArtifactDir: (*Workspace).ReconstructionDir,
			Pattern:     "*.ply",
			Policy:      ReconstructionPolicy(),
		},
	}
}
