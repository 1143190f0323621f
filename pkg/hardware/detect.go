package hardware

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jmuozan/vid2cloud/pkg/models"
)

const (
	// LargeModelMinRAMBytes is the minimum system RAM for running the large
	// segmentation model without degraded performance.
	LargeModelMinRAMBytes = 16 * 1024 * 1024 * 1024
)

// Capabilities describes the compute resources available for segmentation
// and reconstruction
type Capabilities struct {
	HasCUDA    bool   `json:"has_cuda"`
	HasMPS     bool   `json:"has_mps"`
	GPUName    string `json:"gpu_name,omitempty"`
	CPUThreads int    `json:"cpu_threads"`
	RAMBytes   uint64 `json:"ram_bytes"`
}

// Detect probes the current system for compute capabilities
func Detect() *Capabilities {
	caps := &Capabilities{
		CPUThreads: runtime.NumCPU(),
	}

	caps.HasCUDA, caps.GPUName = detectCUDA()
	caps.HasMPS = detectMPS()
	caps.RAMBytes = detectRAM()

	return caps
}

// detectCUDA probes for an NVIDIA GPU via nvidia-smi
func detectCUDA() (bool, string) {
	out, err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err == nil && len(out) > 0 {
		return true, strings.TrimSpace(string(out))
	}
	return false, ""
}

// detectMPS checks for Apple silicon Metal Performance Shaders support
func detectMPS() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}

func detectRAM() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total
}

// BestDevice resolves device=auto to the preferred available compute device
func (c *Capabilities) BestDevice() string {
	if c.HasCUDA {
		return models.DeviceCUDA
	}
	if c.HasMPS {
		return models.DeviceMPS
	}
	return models.DeviceCPU
}

// HasDevice reports whether the named device is usable on this system
func (c *Capabilities) HasDevice(device string) bool {
	switch device {
	case models.DeviceCUDA:
		return c.HasCUDA
	case models.DeviceMPS:
		return c.HasMPS
	case models.DeviceCPU, models.DeviceAuto, "":
		return true
	default:
		return false
	}
}

// FitsModel reports whether the given segmentation model size is expected to
// run without resource exhaustion
func (c *Capabilities) FitsModel(modelSize string) bool {
	if modelSize != models.ModelSizeLarge {
		return true
	}
	if c.RAMBytes == 0 {
		// Unknown RAM: assume it fits and let the runtime signal decide
		return true
	}
	return c.RAMBytes >= LargeModelMinRAMBytes
}
