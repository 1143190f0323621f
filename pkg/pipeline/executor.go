package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jmuozan/vid2cloud/pkg/logging"
	"github.com/jmuozan/vid2cloud/pkg/models"
	"github.com/jmuozan/vid2cloud/pkg/tools"
)

// fatalPatterns maps diagnostic output substrings to classified failure
// signals. Checked in order; first match wins.
var fatalPatterns = []struct {
	substr string
	signal models.FailureSignal
}{
	{"no device found", models.SignalDeviceMissing},
	{"cuda not available", models.SignalDeviceMissing},
	{"no cuda-capable device", models.SignalDeviceMissing},
	{"mps backend is not available", models.SignalDeviceMissing},
	{"out of memory", models.SignalOutOfMemory},
	{"memoryerror", models.SignalOutOfMemory},
	{"model too large", models.SignalModelTooLarge},
	{"insufficient resources for model", models.SignalModelTooLarge},
	{"command not found", models.SignalToolUnavailable},
	{"no module named", models.SignalToolUnavailable},
}

// oomWord matches "oom" only as a standalone token, so ordinary words
// containing it ("bedroom", "zoom") do not fail an attempt.
var oomWord = regexp.MustCompile(`\boom\b`)

// degradedPatterns are recoverable warning signals: the tool ran and
// produced output but flagged a compatibility or quality concern.
var degradedPatterns = []string{
	"incompatible library version",
	"deprecated",
	"falling back to cpu",
	"degraded performance",
}

// Executor runs one external processing stage with a given configuration.
// It never retries; retry and fallback decisions belong to the resolver.
type Executor struct {
	logDir string
	log    *logging.Logger
}

// NewExecutor creates a stage executor writing attempt diagnostics under logDir
func NewExecutor(logDir string, log *logging.Logger) *Executor {
	return &Executor{logDir: logDir, log: log}
}

// Run launches the stage's tool with the given configuration and input,
// waits for completion, and classifies the outcome. The returned attempt
// is never nil.
func (e *Executor) Run(ctx context.Context, stage *Stage, tool tools.Tool, inv tools.Invocation) *models.StageAttempt {
	attempt := &models.StageAttempt{
		ID:        uuid.New().String()[:8],
		Stage:     stage.Name,
		Config:    inv.Config,
		StartedAt: time.Now(),
	}
	defer func() { attempt.CompletedAt = time.Now() }()

	if err := inv.Config.Validate(); err != nil {
		attempt.Outcome = models.OutcomeFailed
		attempt.Signal = models.SignalUnknown
		attempt.Error = err.Error()
		return attempt
	}

	if tool == nil || !tool.Available() {
		name := "unknown"
		if tool != nil {
			name = tool.Name()
		}
		attempt.Outcome = models.OutcomeFailed
		attempt.Signal = models.SignalToolUnavailable
		attempt.Error = (&ToolUnavailableError{Tool: name}).Error()
		return attempt
	}

	binary, args, err := tool.BuildCommand(inv)
	if err != nil {
		attempt.Outcome = models.OutcomeFailed
		attempt.Signal = models.SignalUnknown
		attempt.Error = err.Error()
		return attempt
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if stage.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	var output bytes.Buffer
	sink := io.Writer(&output)
	logPath := filepath.Join(e.logDir, fmt.Sprintf("%s_%s.log", stage.Name, attempt.ID))
	if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644); err == nil {
		defer logFile.Close()
		sink = io.MultiWriter(&output, logFile)
		attempt.LogPath = logPath
	}

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Stdout = sink
	cmd.Stderr = sink
	// New process group so cancellation can terminate the tool and any
	// children it forked.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	e.log.Info("Starting stage attempt", map[string]interface{}{
		"stage":   stage.Name,
		"attempt": attempt.ID,
		"tool":    tool.Name(),
		"config":  inv.Config.Signature(),
	})

	err = cmd.Run()
	e.classify(attempt, runCtx, ctx, err, output.String())
	return attempt
}

// classify maps process outcome and captured diagnostics to the attempt's
// outcome and failure signal
func (e *Executor) classify(attempt *models.StageAttempt, runCtx, parent context.Context, err error, output string) {
	lower := strings.ToLower(output)

	// Cancellation takes precedence over everything else
	if parent.Err() != nil {
		attempt.Outcome = models.OutcomeCanceled
		attempt.Signal = models.SignalCanceled
		attempt.Error = "canceled by operator"
		return
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		attempt.Outcome = models.OutcomeFailed
		attempt.Signal = models.SignalTimeout
		attempt.Error = "stage exceeded allotted time"
		return
	}

	if err == nil {
		// A recognized fatal diagnostic fails the attempt even on a zero
		// exit code.
		if signal := fatalSignal(lower); signal != models.SignalNone {
			attempt.Outcome = models.OutcomeFailed
			attempt.Signal = signal
			attempt.Error = fmt.Sprintf("fatal diagnostic (%s)", signal)
			return
		}
		attempt.Outcome = models.OutcomeSuccess
		for _, p := range degradedPatterns {
			if strings.Contains(lower, p) {
				attempt.Outcome = models.OutcomeDegraded
				attempt.Error = "recoverable warning: " + p
				break
			}
		}
		return
	}

	attempt.Outcome = models.OutcomeFailed
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		attempt.ExitCode = exitErr.ExitCode()
	} else {
		// Process launch error: tool not installed, permissions. Treated
		// the same as a tool-unavailable runtime signal.
		attempt.Signal = models.SignalToolUnavailable
		attempt.Error = err.Error()
		return
	}

	attempt.Signal = models.SignalUnknown
	if signal := fatalSignal(lower); signal != models.SignalNone {
		attempt.Signal = signal
	}
	attempt.Error = fmt.Sprintf("exit code %d (%s)", attempt.ExitCode, attempt.Signal)
}

// fatalSignal classifies lowercased diagnostic output, returning SignalNone
// when no fatal pattern matches
func fatalSignal(output string) models.FailureSignal {
	for _, p := range fatalPatterns {
		if strings.Contains(output, p.substr) {
			return p.signal
		}
	}
	if oomWord.MatchString(output) {
		return models.SignalOutOfMemory
	}
	return models.SignalNone
}
