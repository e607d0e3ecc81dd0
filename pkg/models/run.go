package models

import "time"

// JobType identifies the kind of work a queued run performs.
type JobType string

const (
	JobTypeIngestJob        JobType = "ingest_job"
	JobTypeIngestJobFile    JobType = "ingest_job_file"
	JobTypeIngestResume     JobType = "ingest_resume"
	JobTypeIngestResumeFile JobType = "ingest_resume_file"
	JobTypeIngestAutoFile   JobType = "ingest_auto_file"
	JobTypeReprocessJob     JobType = "reprocess_job"
	JobTypeReprocessResume  JobType = "reprocess_resume"
	JobTypeScoreMatch       JobType = "score_match"
)

// ValidJobTypes lists every job type the queue accepts.
var ValidJobTypes = []JobType{
	JobTypeIngestJob,
	JobTypeIngestJobFile,
	JobTypeIngestResume,
	JobTypeIngestResumeFile,
	JobTypeIngestAutoFile,
	JobTypeReprocessJob,
	JobTypeReprocessResume,
	JobTypeScoreMatch,
}

// IsValid reports whether the job type is one the queue accepts.
func (t JobType) IsValid() bool {
	for _, v := range ValidJobTypes {
		if t == v {
			return true
		}
	}
	return false
}

// RunStatus is the lifecycle state of a queued run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// IsTerminal reports whether the status is a terminal state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCanceled
}

// RunPayload is the typed input of a run. Fields are sparse; which ones are
// set depends on the run's job type. It is persisted as a JSON blob and
// rewritten atomically on every deep-scan checkpoint.
type RunPayload struct {
	// Ingest inputs.
	Filename string   `json:"filename,omitempty"`
	Content  string   `json:"content,omitempty"`
	Path     string   `json:"path,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Reprocess target.
	TargetID int64 `json:"target_id,omitempty"`

	// Scoring inputs.
	JobID       int64 `json:"job_id,omitempty"`
	ResumeID    int64 `json:"resume_id,omitempty"`
	Threshold   int   `json:"threshold,omitempty"`
	AutoDeep    bool  `json:"auto_deep,omitempty"`
	ForcePass1  bool  `json:"force_pass1,omitempty"`
	ForceDeep   bool  `json:"force_deep,omitempty"`
	LegacyRunID int64 `json:"legacy_run_id,omitempty"`

	// Deep-scan checkpoint. DeepResumeFrom is the index of the next
	// requirement to evaluate; DeepPartialDetails holds everything before it.
	DeepResumeFrom     int           `json:"deep_resume_from,omitempty"`
	DeepPartialDetails []MatchDetail `json:"deep_partial_details,omitempty"`

	// Cooperative pause request, observed between pipeline steps.
	PauseRequested bool   `json:"pause_requested,omitempty"`
	PauseReason    string `json:"pause_reason,omitempty"`

	// Deep-cap two-phase batch metadata.
	DeepCapBatchMode bool   `json:"deep_cap_batch_mode,omitempty"`
	BatchGroupKey    string `json:"batch_group_key,omitempty"`
	BatchTotalForJob int    `json:"batch_total_for_job,omitempty"`
	BatchDeepCap     int    `json:"batch_deep_cap,omitempty"`
}

// RunResult is the typed output of a run, persisted as a JSON blob.
type RunResult struct {
	MatchID            int64         `json:"match_id,omitempty"`
	JobID              int64         `json:"job_id,omitempty"`
	ResumeID           int64         `json:"resume_id,omitempty"`
	MatchScore         int           `json:"match_score,omitempty"`
	Decision           Decision      `json:"decision,omitempty"`
	Strategy           Strategy      `json:"strategy,omitempty"`
	Reused             bool          `json:"reused,omitempty"`
	Filename           string        `json:"filename,omitempty"`
	Message            string        `json:"message,omitempty"`
	DeepPartialDetails []MatchDetail `json:"deep_partial_details,omitempty"`
}

// Run is a durable unit of queued work.
type Run struct {
	ID          int64      `json:"id"`
	JobType     JobType    `json:"job_type"`
	Status      RunStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step"`
	Payload     RunPayload `json:"payload"`
	Result      *RunResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	LastLogAt   *time.Time `json:"last_log_at,omitempty"`
}

// RunLog is one line of a run's append-only log stream.
type RunLog struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LegacyRun is a user-facing batch label grouping matches via a link table.
type LegacyRun struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Threshold int       `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag is a case-preserving, case-insensitively unique label.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
