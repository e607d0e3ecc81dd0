package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RunOut is the wire shape of a run, including stuck detection derived from
// last_log_at freshness.
type RunOut struct {
	ID           int64      `json:"id"`
	JobType      JobType    `json:"job_type"`
	Status       RunStatus  `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStep  string     `json:"current_step"`
	Error        string     `json:"error,omitempty"`
	Payload      RunPayload `json:"payload"`
	Result       *RunResult `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	LastLogAt    *time.Time `json:"last_log_at,omitempty"`
	IsStuck      bool       `json:"is_stuck"`
	StuckSeconds int        `json:"stuck_seconds"`
}

// NewRunOut builds the wire shape for a run. A running run whose last log
// line is older than stuckAfter is reported as stuck.
func NewRunOut(run *Run, stuckAfter time.Duration) *RunOut {
	out := &RunOut{
		ID:          run.ID,
		JobType:     run.JobType,
		Status:      run.Status,
		Progress:    run.Progress,
		CurrentStep: run.CurrentStep,
		Error:       run.Error,
		Payload:     run.Payload,
		Result:      run.Result,
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		LastLogAt:   run.LastLogAt,
	}

	if run.Status == RunStatusRunning && run.LastLogAt != nil {
		gap := time.Since(*run.LastLogAt)
		if gap > stuckAfter {
			out.IsStuck = true
			out.StuckSeconds = int(gap.Seconds())
		}
	}

	return out
}

// EnqueuedResponse acknowledges an accepted run.
type EnqueuedResponse struct {
	RunID     int64     `json:"run_id"`
	JobType   JobType   `json:"job_type"`
	Status    RunStatus `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunLogsResponse carries a bounded window of a run's log stream.
type RunLogsResponse struct {
	RunID int64    `json:"run_id"`
	Logs  []RunLog `json:"logs"`
	Count int      `json:"count"`
}

// LegacyRunResponse acknowledges a submitted batch.
type LegacyRunResponse struct {
	LegacyRunID int64   `json:"legacy_run_id"`
	RunIDs      []int64 `json:"run_ids"`
	Message     string  `json:"message"`
}

// SyncResponse reports the outcome of a remote push or pull.
type SyncResponse struct {
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteModeResponse reports the current writer-lock state.
type WriteModeResponse struct {
	WriteMode bool   `json:"write_mode"`
	Owner     string `json:"owner,omitempty"`
	Message   string `json:"message,omitempty"`
}
