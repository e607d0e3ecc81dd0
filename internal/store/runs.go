package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumatch/pkg/models"
)

// EnqueueRun appends a typed run to the durable queue in state queued.
func (s *Store) EnqueueRun(jobType models.JobType, payload models.RunPayload) (*models.Run, error) {
	payloadJSON, err := marshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO job_runs (job_type, status, progress, payload, created_at)
		VALUES (?, ?, 0, ?, ?)`,
		string(jobType), string(models.RunStatusQueued), payloadJSON, now)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetRun(id)
}

// ClaimNextRun atomically claims the oldest queued run, refusing when the
// number of running runs has reached maxRunning. Returns nil when there is
// nothing eligible to claim. The claim transaction is the only serialization
// point between workers: the conditional UPDATE flips exactly one queued row
// to running, so two workers can never hold the same run.
func (s *Store) ClaimNextRun(maxRunning int) (*models.Run, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var running int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM job_runs WHERE status = ?`,
		string(models.RunStatusRunning)).Scan(&running); err != nil {
		return nil, err
	}
	if maxRunning > 0 && running >= maxRunning {
		return nil, nil
	}

	var id int64
	err = tx.QueryRow(`SELECT id FROM job_runs WHERE status = ? ORDER BY id ASC LIMIT 1`,
		string(models.RunStatusQueued)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.Exec(`UPDATE job_runs SET status = ?, started_at = ?, finished_at = NULL, error = '', last_log_at = ?
		WHERE id = ? AND status = ?`,
		string(models.RunStatusRunning), now, now, id, string(models.RunStatusQueued))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race to a concurrent claimer.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetRun(id)
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id int64) (*models.Run, error) {
	return s.scanRun(s.db.QueryRow(runSelect+` WHERE id = ?`, id))
}

// ListRuns returns runs newest first, optionally filtered by status and job
// type, bounded by limit.
func (s *Store) ListRuns(status models.RunStatus, jobType models.JobType, limit int) ([]*models.Run, error) {
	query := runSelect
	var where []string
	var args []interface{}

	if status != "" {
		where = append(where, "status = ?")
		args = append(args, string(status))
	}
	if jobType != "" {
		where = append(where, "job_type = ?")
		args = append(args, string(jobType))
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRunProgress updates progress and current step.
func (s *Store) UpdateRunProgress(id int64, progress int, step string) error {
	_, err := s.db.Exec(`UPDATE job_runs SET progress = ?, current_step = ? WHERE id = ?`,
		progress, step, id)
	return err
}

// UpdateRunPayload rewrites the run payload.
func (s *Store) UpdateRunPayload(id int64, payload models.RunPayload) error {
	payloadJSON, err := marshalJSON(payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE job_runs SET payload = ? WHERE id = ?`, payloadJSON, id)
	return err
}

// UpdateRunResult rewrites the run result.
func (s *Store) UpdateRunResult(id int64, result *models.RunResult) error {
	resultJSON, err := encodeResult(result)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE job_runs SET result = ? WHERE id = ?`, resultJSON, id)
	return err
}

// CheckpointRun persists a deep-scan step boundary: payload, result,
// progress and step move together in one transaction so a crash between
// steps resumes exactly at the recorded index.
func (s *Store) CheckpointRun(id int64, payload models.RunPayload, result *models.RunResult, progress int, step string) error {
	payloadJSON, err := marshalJSON(payload)
	if err != nil {
		return err
	}
	resultJSON, err := encodeResult(result)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`UPDATE job_runs SET payload = ?, result = ?, progress = ?, current_step = ? WHERE id = ?`,
		payloadJSON, resultJSON, progress, step, id)
	return err
}

// AppendRunLog appends a log line and refreshes the owning run's
// last_log_at heartbeat in the same transaction.
func (s *Store) AppendRunLog(runID int64, level, message string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`INSERT INTO job_run_logs (run_id, level, message, created_at) VALUES (?, ?, ?, ?)`,
		runID, level, message, now); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE job_runs SET last_log_at = ? WHERE id = ?`, now, runID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListRunLogs returns the last `limit` log lines of a run in chronological
// order.
func (s *Store) ListRunLogs(runID int64, limit int) ([]models.RunLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := s.db.Query(`SELECT id, run_id, level, message, created_at FROM
		(SELECT id, run_id, level, message, created_at FROM job_run_logs
		 WHERE run_id = ? ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var l models.RunLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CompleteRun marks a run completed with its result.
func (s *Store) CompleteRun(id int64, result *models.RunResult) error {
	resultJSON, err := encodeResult(result)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`UPDATE job_runs SET status = ?, progress = 100, result = ?, finished_at = ? WHERE id = ?`,
		string(models.RunStatusCompleted), resultJSON, now, id)
	return err
}

// FailRun marks a run failed with an error message.
func (s *Store) FailRun(id int64, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE job_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(models.RunStatusFailed), errMsg, now, id)
	return err
}

// MarkRunPaused marks a run paused, keeping its checkpoint intact and
// clearing the pause request so a requeue starts cleanly. The reason stays
// in the payload; the error column is reserved for run failures.
func (s *Store) MarkRunPaused(id int64, reason string) error {
	return s.mutatePayload(id, func(p *models.RunPayload) {
		p.PauseRequested = false
		p.PauseReason = reason
	}, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Exec(`UPDATE job_runs SET status = ?, error = '', finished_at = ? WHERE id = ?`,
			string(models.RunStatusPaused), now, id)
		return err
	})
}

// RequeueRun transitions a paused, failed, canceled or stuck-running run
// back to queued, preserving the payload (and any deep-scan checkpoint in
// it). Completed runs are not requeueable.
func (s *Store) RequeueRun(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM job_runs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if models.RunStatus(status) == models.RunStatusCompleted {
		return fmt.Errorf("run %d is completed and cannot be requeued", id)
	}

	if _, err := tx.Exec(`UPDATE job_runs SET status = ?, error = '', started_at = NULL, finished_at = NULL WHERE id = ?`,
		string(models.RunStatusQueued), id); err != nil {
		return err
	}
	return tx.Commit()
}

// CancelRun marks a run canceled. With clean set, the deep-scan checkpoint
// is dropped so a later recompute restarts from scratch.
func (s *Store) CancelRun(id int64, clean bool) error {
	mutate := func(p *models.RunPayload) {
		p.PauseRequested = false
		p.PauseReason = ""
		if clean {
			p.DeepResumeFrom = 0
			p.DeepPartialDetails = nil
		}
	}
	return s.mutatePayload(id, mutate, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Exec(`UPDATE job_runs SET status = ?, finished_at = ? WHERE id = ?`,
			string(models.RunStatusCanceled), now, id)
		return err
	})
}

// RequestPause flags a running run for cooperative pause; workers observe
// the flag between pipeline steps.
func (s *Store) RequestPause(id int64, reason string) error {
	return s.mutatePayload(id, func(p *models.RunPayload) {
		p.PauseRequested = true
		p.PauseReason = reason
	}, nil)
}

// IsRunCanceled reports whether a run is canceled, reflecting commits from
// other connections.
func (s *Store) IsRunCanceled(id int64) (bool, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM job_runs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return models.RunStatus(status) == models.RunStatusCanceled, nil
}

// IsRunPauseRequested reports whether a pause has been requested along with
// the requested reason.
func (s *Store) IsRunPauseRequested(id int64) (bool, string, error) {
	run, err := s.GetRun(id)
	if err != nil {
		return false, "", err
	}
	return run.Payload.PauseRequested, run.Payload.PauseReason, nil
}

// CountRunning counts runs currently in the running state.
func (s *Store) CountRunning() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM job_runs WHERE status = ?`,
		string(models.RunStatusRunning)).Scan(&n)
	return n, err
}

// mutatePayload applies fn to the run's payload inside one transaction,
// optionally running extra statements in the same transaction.
func (s *Store) mutatePayload(id int64, fn func(*models.RunPayload), extra func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var payloadJSON string
	err = tx.QueryRow(`SELECT payload FROM job_runs WHERE id = ?`, id).Scan(&payloadJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var payload models.RunPayload
	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return fmt.Errorf("failed to decode payload for run %d: %w", id, err)
		}
	}

	fn(&payload)

	updated, err := marshalJSON(payload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE job_runs SET payload = ? WHERE id = ?`, updated, id); err != nil {
		return err
	}

	if extra != nil {
		if err := extra(tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// encodeResult maps a nil result to SQL NULL rather than the JSON literal
// "null".
func encodeResult(result *models.RunResult) (interface{}, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

const runSelect = `SELECT id, job_type, status, progress, current_step, payload, result, error,
	created_at, started_at, finished_at, last_log_at FROM job_runs`

func (s *Store) scanRun(row rowScanner) (*models.Run, error) {
	var (
		run         models.Run
		jobType     string
		status      string
		payloadJSON string
		resultJSON  sql.NullString
		startedAt   sql.NullTime
		finishedAt  sql.NullTime
		lastLogAt   sql.NullTime
	)
	err := row.Scan(&run.ID, &jobType, &status, &run.Progress, &run.CurrentStep,
		&payloadJSON, &resultJSON, &run.Error, &run.CreatedAt, &startedAt, &finishedAt, &lastLogAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run.JobType = models.JobType(jobType)
	run.Status = models.RunStatus(status)
	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &run.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for run %d: %w", run.ID, err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result models.RunResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to decode result for run %d: %w", run.ID, err)
		}
		run.Result = &result
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if lastLogAt.Valid {
		run.LastLogAt = &lastLogAt.Time
	}
	return &run, nil
}
