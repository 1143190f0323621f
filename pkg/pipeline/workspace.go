package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Workspace is the per-run working directory, derived deterministically
// from the source video's base name. The controller is its only writer.
type Workspace struct {
	root string
}

// NewWorkspace derives the working directory for a video under baseDir
func NewWorkspace(baseDir, videoPath string) *Workspace {
	base := filepath.Base(videoPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return &Workspace{root: filepath.Join(baseDir, base)}
}

// Root returns the working directory path
func (w *Workspace) Root() string { return w.root }

// FramesDir holds the extracted frame sequence
func (w *Workspace) FramesDir() string { return filepath.Join(w.root, "frames") }

// SegmentationDir holds segmentation output, including the masks subdirectory
func (w *Workspace) SegmentationDir() string { return filepath.Join(w.root, "segmentation") }

// MasksDir holds the per-frame masks
func (w *Workspace) MasksDir() string { return filepath.Join(w.root, "segmentation", "masks") }

// MaskedDir holds the masked frame images
func (w *Workspace) MaskedDir() string { return filepath.Join(w.root, "masked") }

// ReconstructionDir holds reconstruction output and the canonical alias
func (w *Workspace) ReconstructionDir() string { return filepath.Join(w.root, "reconstruction") }

// LogsDir holds the per-run pipeline log and per-attempt diagnostics
func (w *Workspace) LogsDir() string { return filepath.Join(w.root, "logs") }

// RunStatePath is where the finalized run record is persisted
func (w *Workspace) RunStatePath() string { return filepath.Join(w.root, "run.json") }

func (w *Workspace) lockPath() string { return filepath.Join(w.root, ".lock") }

// Ensure creates the working directory root and logs directory
func (w *Workspace) Ensure() error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", w.root, err)
	}
	return os.MkdirAll(w.LogsDir(), 0755)
}

// EnsureDir creates one stage output directory. Stage directories are
// created only when their stage starts, so a run failing at extraction
// leaves no segmentation/masking/reconstruction directories behind.
func (w *Workspace) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Lock takes the working-directory mutual exclusion lock. Two concurrent
// runs on the same input must not share a working directory, so a lock
// held by a live process rejects the second run. A lock whose holder no
// longer exists (crashed run, no cleanup) is reclaimed.
func (w *Workspace) Lock() error {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(w.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			f.Close()
			return werr
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to lock working directory: %w", err)
		}

		holder, _ := os.ReadFile(w.lockPath())
		pid, perr := strconv.Atoi(strings.TrimSpace(string(holder)))
		if perr == nil && processAlive(pid) {
			return &InputError{
				Path: w.root,
				Err:  fmt.Errorf("working directory locked by pid %d", pid),
			}
		}
		// Stale lock: holder is gone or the file is unreadable
		os.Remove(w.lockPath())
	}
	return fmt.Errorf("failed to lock working directory %s", w.root)
}

// processAlive reports whether a process with the given pid exists
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Unlock releases the working-directory lock
func (w *Workspace) Unlock() error {
	return os.Remove(w.lockPath())
}

// WriteJSON persists v at path by writing a temp file in the same
// directory and renaming it into place.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
