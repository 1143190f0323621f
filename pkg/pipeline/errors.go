package pipeline

import (
	"errors"
	"fmt"

	"github.com/jmuozan/vid2cloud/pkg/models"
)

// InputError means the source video is missing or unreadable. Fatal, no
// fallback.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ToolUnavailableError means a required external tool or backend is not
// installed.
type ToolUnavailableError struct {
	Tool string
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("tool %s not available", e.Tool)
}

// DeviceCapabilityError means the preferred compute device is unavailable
// or insufficient.
type DeviceCapabilityError struct {
	Device string
}

func (e *DeviceCapabilityError) Error() string {
	return fmt.Sprintf("compute device %s unavailable", e.Device)
}

// ResourceExhaustionError means a stage ran out of memory or similar.
type ResourceExhaustionError struct {
	Stage string
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("stage %s exhausted resources", e.Stage)
}

// ArtifactNotFoundError means an expected output is missing after a
// nominally successful stage. Raised only if even the synthesize tier
// cannot produce a placeholder.
type ArtifactNotFoundError struct {
	Stage string
	Err   error
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("stage %s: no artifact could be resolved or synthesized: %v", e.Stage, e.Err)
}

func (e *ArtifactNotFoundError) Unwrap() error { return e.Err }

// CancellationError means the operator interrupted the run. Always fatal,
// never retried.
type CancellationError struct {
	Stage string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("run canceled during stage %s", e.Stage)
}

// StageFailedError means a mandatory stage exhausted its fallback policy.
type StageFailedError struct {
	Stage  string
	Signal models.FailureSignal
}

func (e *StageFailedError) Error() string {
	if e.Signal != models.SignalNone {
		return fmt.Sprintf("stage %s failed (%s), fallback policy exhausted", e.Stage, e.Signal)
	}
	return fmt.Sprintf("stage %s failed, fallback policy exhausted", e.Stage)
}

// IsCancellation reports whether err is (or wraps) a CancellationError
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}
