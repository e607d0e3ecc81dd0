package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumatch/pkg/models"
)

// UpsertJob creates or replaces a job description keyed by filename.
func (s *Store) UpsertJob(filename, content string, criteria *models.JobCriteria, tags []string) (*models.Job, error) {
	criteriaJSON, err := marshalJSON(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO jobs (filename, content, criteria, tags, upload_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			content = excluded.content,
			criteria = excluded.criteria,
			tags = excluded.tags,
			upload_date = excluded.upload_date`,
		filename, content, nullString(criteriaJSON), joinTags(tags), now)
	if err != nil {
		return nil, err
	}

	return s.GetJobByFilename(filename)
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(id int64) (*models.Job, error) {
	return s.scanJob(s.db.QueryRow(
		`SELECT id, filename, content, criteria, tags, upload_date FROM jobs WHERE id = ?`, id))
}

// GetJobByFilename retrieves a job by filename.
func (s *Store) GetJobByFilename(filename string) (*models.Job, error) {
	return s.scanJob(s.db.QueryRow(
		`SELECT id, filename, content, criteria, tags, upload_date FROM jobs WHERE filename = ?`, filename))
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs() ([]*models.Job, error) {
	rows, err := s.db.Query(
		`SELECT id, filename, content, criteria, tags, upload_date FROM jobs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job and cascades to its matches (and their batch links).
func (s *Store) DeleteJob(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM run_matches WHERE match_id IN (SELECT id FROM matches WHERE job_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM matches WHERE job_id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertResume creates or replaces a resume keyed by filename.
func (s *Store) UpsertResume(filename, content string, profile *models.CandidateProfile, tags []string) (*models.Resume, error) {
	profileJSON, err := marshalJSON(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO resumes (filename, content, profile, tags, upload_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			content = excluded.content,
			profile = excluded.profile,
			tags = excluded.tags,
			upload_date = excluded.upload_date`,
		filename, content, nullString(profileJSON), joinTags(tags), now)
	if err != nil {
		return nil, err
	}

	return s.GetResumeByFilename(filename)
}

// GetResume retrieves a resume by id.
func (s *Store) GetResume(id int64) (*models.Resume, error) {
	return s.scanResume(s.db.QueryRow(
		`SELECT id, filename, content, profile, tags, upload_date FROM resumes WHERE id = ?`, id))
}

// GetResumeByFilename retrieves a resume by filename.
func (s *Store) GetResumeByFilename(filename string) (*models.Resume, error) {
	return s.scanResume(s.db.QueryRow(
		`SELECT id, filename, content, profile, tags, upload_date FROM resumes WHERE filename = ?`, filename))
}

// ListResumes returns all resumes, newest first.
func (s *Store) ListResumes() ([]*models.Resume, error) {
	rows, err := s.db.Query(
		`SELECT id, filename, content, profile, tags, upload_date FROM resumes ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resumes []*models.Resume
	for rows.Next() {
		resume, err := s.scanResume(rows)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, resume)
	}
	return resumes, rows.Err()
}

// DeleteResume removes a resume and cascades to its matches.
func (s *Store) DeleteResume(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM resumes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM run_matches WHERE match_id IN (SELECT id FROM matches WHERE resume_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM matches WHERE resume_id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanJob(row rowScanner) (*models.Job, error) {
	var (
		job      models.Job
		criteria sql.NullString
		tags     string
	)
	err := row.Scan(&job.ID, &job.Filename, &job.Content, &criteria, &tags, &job.UploadDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	job.Tags = splitTags(tags)
	if criteria.Valid && criteria.String != "" {
		var c models.JobCriteria
		if err := json.Unmarshal([]byte(criteria.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode criteria for job %d: %w", job.ID, err)
		}
		job.Criteria = &c
	}
	return &job, nil
}

func (s *Store) scanResume(row rowScanner) (*models.Resume, error) {
	var (
		resume  models.Resume
		profile sql.NullString
		tags    string
	)
	err := row.Scan(&resume.ID, &resume.Filename, &resume.Content, &profile, &tags, &resume.UploadDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	resume.Tags = splitTags(tags)
	if profile.Valid && profile.String != "" {
		var p models.CandidateProfile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile for resume %d: %w", resume.ID, err)
		}
		resume.Profile = &p
	}
	return &resume, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
