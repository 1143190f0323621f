package tools

import (
	"fmt"
	"path/filepath"
)

// Masker applies per-frame masks to the extracted frames, producing the
// masked image set reconstruction consumes.
type Masker struct {
	binary            string
	availableOverride func() bool
}

// NewMasker creates the masking tool wrapper
func NewMasker(binary string) *Masker {
	return &Masker{binary: binary}
}

// Name returns the tool name
func (m *Masker) Name() string {
	return "mask-frames"
}

// Available checks for the masking tool binary
func (m *Masker) Available() bool {
	if m.availableOverride != nil {
		return m.availableOverride()
	}
	return binaryOnPath(m.binary)
}

// BuildCommand generates the mask application command. InputPath is the
// mask-set directory; the sibling frames directory is derived from the
// working directory layout.
func (m *Masker) BuildCommand(inv Invocation) (string, []string, error) {
	if inv.InputPath == "" {
		return "", nil, fmt.Errorf("masker: no input mask set")
	}

	// masks live at <workdir>/segmentation/masks; frames at <workdir>/frames
	workDir := filepath.Dir(filepath.Dir(inv.InputPath))
	args := []string{
		"--frames", filepath.Join(workDir, "frames"),
		"--masks", inv.InputPath,
		"--output", inv.OutputDir,
	}
	return m.binary, args, nil
}
