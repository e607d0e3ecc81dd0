package models

// IngestTextRequest uploads an already-extracted document body.
type IngestTextRequest struct {
	Filename string   `json:"filename" validate:"required"`
	Content  string   `json:"content" validate:"required"`
	Tags     []string `json:"tags,omitempty"`
}

// IngestFileRequest enqueues ingestion of a file already on disk.
type IngestFileRequest struct {
	Path string   `json:"path" validate:"required"`
	Tags []string `json:"tags,omitempty"`
}

// ScoreMatchRequest scores a single (job, resume) pair.
type ScoreMatchRequest struct {
	JobID      int64 `json:"job_id" validate:"required,gt=0"`
	ResumeID   int64 `json:"resume_id" validate:"required,gt=0"`
	Threshold  int   `json:"threshold" validate:"gte=0,lte=100"`
	AutoDeep   bool  `json:"auto_deep"`
	ForcePass1 bool  `json:"force_pass1"`
	ForceDeep  bool  `json:"force_deep"`
}

// EnqueueRunRequest enqueues a typed run directly.
type EnqueueRunRequest struct {
	JobType string     `json:"job_type" validate:"required"`
	Payload RunPayload `json:"payload"`
}

// LegacyRunRequest submits a batch: one job against many resumes.
type LegacyRunRequest struct {
	Name              string  `json:"name" validate:"required"`
	JobID             int64   `json:"job_id" validate:"required,gt=0"`
	ResumeIDs         []int64 `json:"resume_ids" validate:"required,min=1"`
	Threshold         int     `json:"threshold" validate:"gte=0,lte=100"`
	AutoDeep          bool    `json:"auto_deep"`
	ForceDeep         bool    `json:"force_deep"`
	MaxDeepScansPerJD int     `json:"max_deep_scans_per_jd" validate:"gte=0"`
}

// TagRequest creates or renames a tag.
type TagRequest struct {
	Name string `json:"name" validate:"required"`
}

// PauseRunRequest asks a running run to pause at its next step boundary.
type PauseRunRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelRunRequest cancels a run; Clean additionally drops any deep-scan
// checkpoint so a later recompute restarts from scratch.
type CancelRunRequest struct {
	Clean bool `json:"clean"`
}
