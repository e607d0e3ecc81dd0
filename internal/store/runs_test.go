package store

import (
	"path/filepath"
	"testing"

	"resumatch/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestClaimNextRunFIFO(t *testing.T) {
	st := newTestStore(t)

	first, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{JobID: 1, ResumeID: 1})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	second, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{JobID: 1, ResumeID: 2})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	claimed, err := st.ClaimNextRun(10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected run %d claimed first, got %+v", first.ID, claimed)
	}
	if claimed.Status != models.RunStatusRunning {
		t.Fatalf("expected running status, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatalf("expected started_at to be stamped")
	}

	claimed, err = st.ClaimNextRun(10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected run %d claimed second, got %+v", second.ID, claimed)
	}

	claimed, err = st.ClaimNextRun(10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty queue, got run %d", claimed.ID)
	}
}

func TestClaimNextRunRespectsMaxRunning(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.EnqueueRun(models.JobTypeIngestJob, models.RunPayload{Filename: "a.txt"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := st.EnqueueRun(models.JobTypeIngestJob, models.RunPayload{Filename: "b.txt"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	claimed, err := st.ClaimNextRun(1)
	if err != nil || claimed == nil {
		t.Fatalf("expected first claim to succeed, got %v %v", claimed, err)
	}

	blocked, err := st.ClaimNextRun(1)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if blocked != nil {
		t.Fatalf("expected claim to refuse at capacity, got run %d", blocked.ID)
	}

	if err := st.CompleteRun(claimed.ID, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	next, err := st.ClaimNextRun(1)
	if err != nil || next == nil {
		t.Fatalf("expected claim after capacity freed, got %v %v", next, err)
	}
}

func TestRequeueRunPreservesCheckpoint(t *testing.T) {
	st := newTestStore(t)

	payload := models.RunPayload{
		JobID:          1,
		ResumeID:       2,
		DeepResumeFrom: 3,
		DeepPartialDetails: []models.MatchDetail{
			{Requirement: "Go", Category: models.CategoryMustHave, Status: models.StatusMet},
			{Requirement: "SQL", Category: models.CategoryMustHave, Status: models.StatusMet},
			{Requirement: "K8s", Category: models.CategoryNiceToHave, Status: models.StatusMissing},
		},
	}
	run, err := st.EnqueueRun(models.JobTypeScoreMatch, payload)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := st.ClaimNextRun(10); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := st.FailRun(run.ID, "boom"); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	if err := st.RequeueRun(run.ID); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}

	got, err := st.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.RunStatusQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}
	if got.Error != "" {
		t.Fatalf("expected error cleared, got %q", got.Error)
	}
	if got.StartedAt != nil || got.FinishedAt != nil {
		t.Fatalf("expected timestamps cleared")
	}
	if got.Payload.DeepResumeFrom != 3 || len(got.Payload.DeepPartialDetails) != 3 {
		t.Fatalf("expected checkpoint preserved, got resume_from=%d details=%d",
			got.Payload.DeepResumeFrom, len(got.Payload.DeepPartialDetails))
	}
}

func TestRequeueRunRejectsCompleted(t *testing.T) {
	st := newTestStore(t)

	run, err := st.EnqueueRun(models.JobTypeIngestResume, models.RunPayload{Filename: "cv.pdf"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := st.CompleteRun(run.ID, &models.RunResult{Message: "done"}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if err := st.RequeueRun(run.ID); err == nil {
		t.Fatalf("expected requeue of completed run to fail")
	}
}

func TestCancelRunCleanDropsCheckpoint(t *testing.T) {
	st := newTestStore(t)

	payload := models.RunPayload{
		JobID:          1,
		ResumeID:       2,
		DeepResumeFrom: 2,
		DeepPartialDetails: []models.MatchDetail{
			{Requirement: "Go", Category: models.CategoryMustHave, Status: models.StatusMet},
			{Requirement: "SQL", Category: models.CategoryMustHave, Status: models.StatusMissing},
		},
	}
	run, err := st.EnqueueRun(models.JobTypeScoreMatch, payload)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := st.CancelRun(run.ID, true); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	got, err := st.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.RunStatusCanceled {
		t.Fatalf("expected canceled, got %s", got.Status)
	}
	if got.Payload.DeepResumeFrom != 0 || got.Payload.DeepPartialDetails != nil {
		t.Fatalf("expected checkpoint dropped, got resume_from=%d details=%d",
			got.Payload.DeepResumeFrom, len(got.Payload.DeepPartialDetails))
	}
	if got.Payload.JobID != 1 || got.Payload.ResumeID != 2 {
		t.Fatalf("expected scoring inputs preserved")
	}
}

func TestCancelRunKeepsCheckpointWithoutClean(t *testing.T) {
	st := newTestStore(t)

	run, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{
		JobID: 1, ResumeID: 2, DeepResumeFrom: 4,
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := st.CancelRun(run.ID, false); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	got, err := st.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Payload.DeepResumeFrom != 4 {
		t.Fatalf("expected checkpoint kept, got resume_from=%d", got.Payload.DeepResumeFrom)
	}
}

func TestPauseRequestRoundTrip(t *testing.T) {
	st := newTestStore(t)

	run, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{JobID: 1, ResumeID: 2})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := st.RequestPause(run.ID, "maintenance window"); err != nil {
		t.Fatalf("request pause failed: %v", err)
	}
	requested, reason, err := st.IsRunPauseRequested(run.ID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !requested || reason != "maintenance window" {
		t.Fatalf("expected pause requested, got %v %q", requested, reason)
	}

	if err := st.MarkRunPaused(run.ID, "maintenance window"); err != nil {
		t.Fatalf("mark paused failed: %v", err)
	}
	got, err := st.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.RunStatusPaused {
		t.Fatalf("expected paused, got %s", got.Status)
	}
	if got.Payload.PauseRequested {
		t.Fatalf("expected pause request cleared after pausing")
	}
	if got.Payload.PauseReason != "maintenance window" {
		t.Fatalf("expected pause reason kept in payload, got %q", got.Payload.PauseReason)
	}
	if got.Error != "" {
		t.Fatalf("paused run must not carry a failure message, got %q", got.Error)
	}
}

func TestCancelRunClearsPauseFlags(t *testing.T) {
	st := newTestStore(t)

	run, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{JobID: 1, ResumeID: 2})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := st.RequestPause(run.ID, "maintenance window"); err != nil {
		t.Fatalf("request pause failed: %v", err)
	}
	if err := st.CancelRun(run.ID, false); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// A canceled-then-requeued run must not re-pause on a stale request.
	if err := st.RequeueRun(run.ID); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	requested, reason, err := st.IsRunPauseRequested(run.ID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if requested || reason != "" {
		t.Fatalf("expected pause flags cleared by cancel, got %v %q", requested, reason)
	}
}

func TestAppendRunLogStampsHeartbeat(t *testing.T) {
	st := newTestStore(t)

	run, err := st.EnqueueRun(models.JobTypeIngestJob, models.RunPayload{Filename: "jd.txt"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := st.AppendRunLog(run.ID, "info", "Run started"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := st.AppendRunLog(run.ID, "debug", "heartbeat"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := st.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.LastLogAt == nil {
		t.Fatalf("expected last_log_at stamped by log append")
	}

	logs, err := st.ListRunLogs(run.ID, 10)
	if err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(logs))
	}
	if logs[0].Message != "Run started" || logs[1].Message != "heartbeat" {
		t.Fatalf("expected chronological order, got %q then %q", logs[0].Message, logs[1].Message)
	}
}

func TestListRunLogsReturnsTail(t *testing.T) {
	st := newTestStore(t)

	run, err := st.EnqueueRun(models.JobTypeIngestJob, models.RunPayload{Filename: "jd.txt"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	messages := []string{"one", "two", "three", "four", "five"}
	for _, msg := range messages {
		if err := st.AppendRunLog(run.ID, "info", msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	logs, err := st.ListRunLogs(run.ID, 2)
	if err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(logs))
	}
	if logs[0].Message != "four" || logs[1].Message != "five" {
		t.Fatalf("expected last two lines in order, got %q %q", logs[0].Message, logs[1].Message)
	}
}

func TestListRunsFilters(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.EnqueueRun(models.JobTypeIngestJob, models.RunPayload{Filename: "a"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	scoreRun, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{JobID: 1, ResumeID: 1})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := st.CompleteRun(scoreRun.ID, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	completed, err := st.ListRuns(models.RunStatusCompleted, "", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != scoreRun.ID {
		t.Fatalf("expected only the completed run, got %d rows", len(completed))
	}

	scored, err := st.ListRuns("", models.JobTypeScoreMatch, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(scored) != 1 || scored[0].JobType != models.JobTypeScoreMatch {
		t.Fatalf("expected only score_match runs, got %d rows", len(scored))
	}
}

func TestSetGroupFlagIsOneShot(t *testing.T) {
	st := newTestStore(t)

	acquired, err := st.SetGroupFlag("deep-wave:abc")
	if err != nil {
		t.Fatalf("set flag failed: %v", err)
	}
	if !acquired {
		t.Fatalf("expected first setter to acquire the flag")
	}

	again, err := st.SetGroupFlag("deep-wave:abc")
	if err != nil {
		t.Fatalf("set flag failed: %v", err)
	}
	if again {
		t.Fatalf("expected second setter to lose")
	}

	other, err := st.SetGroupFlag("deep-wave:def")
	if err != nil || !other {
		t.Fatalf("expected a different key to acquire, got %v %v", other, err)
	}
}
