package pipeline

import (
	"errors"
	"fmt"

	"resumatch/internal/logging"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// ErrRunCanceled is raised when a run observes a cancel request at a step
// boundary.
var ErrRunCanceled = errors.New("run canceled")

// PausedError is raised when a run observes a pause request at a step
// boundary. The worker translates it into the paused state.
type PausedError struct {
	Reason string
}

func (e *PausedError) Error() string {
	if e.Reason == "" {
		return "run paused"
	}
	return fmt.Sprintf("run paused: %s", e.Reason)
}

// RunHandle gives pipeline code a narrow view of its owning run: logging,
// checkpoint writes and the cancel/pause signals. Every pipeline function
// receives one explicitly; there is no ambient current-run state.
type RunHandle struct {
	store  *store.Store
	runID  int64
	logger logging.Logger
}

// NewRunHandle creates a handle bound to one run.
func NewRunHandle(st *store.Store, runID int64) *RunHandle {
	return &RunHandle{
		store:  st,
		runID:  runID,
		logger: logging.GetGlobalLogger().WithField("run_id", runID),
	}
}

// RunID returns the owning run's id.
func (h *RunHandle) RunID() int64 {
	return h.runID
}

// Log appends a line to the run's log stream and mirrors it to the global
// logger. The append also refreshes last_log_at.
func (h *RunHandle) Log(level, message string) {
	if err := h.store.AppendRunLog(h.runID, level, message); err != nil {
		h.logger.Warn("Failed to append run log", map[string]interface{}{"error": err.Error()})
	}
	switch level {
	case "debug":
		h.logger.Debug(message)
	case "warn":
		h.logger.Warn(message)
	case "error":
		h.logger.Error(message)
	default:
		h.logger.Info(message)
	}
}

// Progress updates the run's progress and current step.
func (h *RunHandle) Progress(progress int, step string) {
	if err := h.store.UpdateRunProgress(h.runID, progress, step); err != nil {
		h.logger.Warn("Failed to update run progress", map[string]interface{}{"error": err.Error()})
	}
}

// Checkpoint atomically persists a step boundary: payload, result, progress
// and step in one write.
func (h *RunHandle) Checkpoint(payload models.RunPayload, result *models.RunResult, progress int, step string) error {
	return h.store.CheckpointRun(h.runID, payload, result, progress, step)
}

// EnsureActive checks the cancel and pause signals. Called before every
// network call and before every checkpoint write; a run mid-LLM-call is
// interrupted at the next boundary, not sooner.
func (h *RunHandle) EnsureActive() error {
	canceled, err := h.store.IsRunCanceled(h.runID)
	if err != nil {
		return err
	}
	if canceled {
		return ErrRunCanceled
	}

	paused, reason, err := h.store.IsRunPauseRequested(h.runID)
	if err != nil {
		return err
	}
	if paused {
		return &PausedError{Reason: reason}
	}
	return nil
}
