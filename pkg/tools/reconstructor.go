package tools

import (
	"fmt"
	"os/exec"
)

// PointCloudName is the canonical alias file name inside the
// reconstruction output directory.
const PointCloudName = "result.ply"

// ColmapReconstructor wraps the native COLMAP toolchain binary
type ColmapReconstructor struct {
	binary            string
	availableOverride func() bool
}

// NewColmapReconstructor creates the native reconstruction backend wrapper
func NewColmapReconstructor(binary string) *ColmapReconstructor {
	return &ColmapReconstructor{binary: binary}
}

// Name returns the backend name
func (r *ColmapReconstructor) Name() string {
	return "colmap"
}

// Available checks for the colmap binary
func (r *ColmapReconstructor) Available() bool {
	if r.availableOverride != nil {
		return r.availableOverride()
	}
	return binaryOnPath(r.binary)
}

// BuildCommand generates the native reconstruction command
func (r *ColmapReconstructor) BuildCommand(inv Invocation) (string, []string, error) {
	if inv.InputPath == "" {
		return "", nil, fmt.Errorf("colmap: no input image directory")
	}

	args := []string{
		"automatic_reconstructor",
		"--image_path", inv.InputPath,
		"--workspace_path", inv.OutputDir,
		"--dense", "0",
	}
	return r.binary, args, nil
}

// PycolmapReconstructor wraps the library-embedded reconstruction backend,
// invoked through the Python interpreter. Same input/output contract as
// the native backend.
type PycolmapReconstructor struct {
	interpreter       string
	availableOverride func() bool
}

// NewPycolmapReconstructor creates the embedded reconstruction backend wrapper
func NewPycolmapReconstructor(interpreter string) *PycolmapReconstructor {
	return &PycolmapReconstructor{interpreter: interpreter}
}

// Name returns the backend name
func (r *PycolmapReconstructor) Name() string {
	return "pycolmap"
}

// Available checks that the interpreter exists and the pycolmap module imports
func (r *PycolmapReconstructor) Available() bool {
	if r.availableOverride != nil {
		return r.availableOverride()
	}
	if !binaryOnPath(r.interpreter) {
		return false
	}
	return exec.Command(r.interpreter, "-c", "import pycolmap").Run() == nil
}

// BuildCommand generates the embedded reconstruction command
func (r *PycolmapReconstructor) BuildCommand(inv Invocation) (string, []string, error) {
	if inv.InputPath == "" {
		return "", nil, fmt.Errorf("pycolmap: no input image directory")
	}

	script := fmt.Sprintf(
		"import pycolmap; pycolmap.incremental_mapping(database_path=%q, image_path=%q, output_path=%q)",
		inv.OutputDir+"/database.db", inv.InputPath, inv.OutputDir,
	)
	args := []string{"-c", script}
	return r.interpreter, args, nil
}
