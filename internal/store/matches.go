package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumatch/pkg/models"
)

// GetMatchIfExists returns the match row for a (job, resume) pair, or nil
// when no match has been computed yet.
func (s *Store) GetMatchIfExists(jobID, resumeID int64) (*models.Match, error) {
	match, err := s.scanMatch(s.db.QueryRow(matchSelect+` WHERE job_id = ? AND resume_id = ?`, jobID, resumeID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return match, err
}

// GetMatch retrieves a match by id.
func (s *Store) GetMatch(id int64) (*models.Match, error) {
	return s.scanMatch(s.db.QueryRow(matchSelect+` WHERE id = ?`, id))
}

// SaveMatch creates or updates a match row. When matchID is non-zero the
// existing row is updated in place, preserving the one-row-per-pair
// invariant; otherwise a new row is inserted (the UNIQUE(job_id, resume_id)
// constraint backstops concurrent inserts).
func (s *Store) SaveMatch(m *models.Match, matchID int64) (int64, error) {
	missingJSON, err := marshalJSON(m.MissingSkills)
	if err != nil {
		return 0, fmt.Errorf("failed to encode missing skills: %w", err)
	}
	detailsJSON, err := marshalJSON(m.MatchDetails)
	if err != nil {
		return 0, fmt.Errorf("failed to encode match details: %w", err)
	}
	if missingJSON == "" {
		missingJSON = "[]"
	}
	if detailsJSON == "" {
		detailsJSON = "[]"
	}

	var standardScore interface{}
	if m.StandardScore != nil {
		standardScore = *m.StandardScore
	}

	if matchID != 0 {
		res, err := s.db.Exec(`UPDATE matches SET
				candidate_name = ?, match_score = ?, standard_score = ?,
				decision = ?, strategy = ?, reasoning = ?, standard_reasoning = ?,
				missing_skills = ?, match_details = ?
			WHERE id = ?`,
			m.CandidateName, m.MatchScore, standardScore,
			string(m.Decision), string(m.Strategy), m.Reasoning, m.StandardReasoning,
			missingJSON, detailsJSON, matchID)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, ErrNotFound
		}
		return matchID, nil
	}

	res, err := s.db.Exec(`INSERT INTO matches
			(job_id, resume_id, candidate_name, match_score, standard_score,
			 decision, strategy, reasoning, standard_reasoning, missing_skills, match_details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, resume_id) DO UPDATE SET
			candidate_name = excluded.candidate_name,
			match_score = excluded.match_score,
			standard_score = excluded.standard_score,
			decision = excluded.decision,
			strategy = excluded.strategy,
			reasoning = excluded.reasoning,
			standard_reasoning = excluded.standard_reasoning,
			missing_skills = excluded.missing_skills,
			match_details = excluded.match_details`,
		m.JobID, m.ResumeID, m.CandidateName, m.MatchScore, standardScore,
		string(m.Decision), string(m.Strategy), m.Reasoning, m.StandardReasoning,
		missingJSON, detailsJSON)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		// Upsert hit the conflict branch; fetch the surviving row id.
		existing, gerr := s.GetMatchIfExists(m.JobID, m.ResumeID)
		if gerr != nil {
			return 0, gerr
		}
		if existing == nil {
			return 0, fmt.Errorf("match row vanished after upsert")
		}
		return existing.ID, nil
	}
	return id, nil
}

// ListMatches returns matches, optionally filtered by job.
func (s *Store) ListMatches(jobID int64) ([]*models.Match, error) {
	query := matchSelect + ` ORDER BY match_score DESC, id ASC`
	args := []interface{}{}
	if jobID != 0 {
		query = matchSelect + ` WHERE job_id = ? ORDER BY match_score DESC, id ASC`
		args = append(args, jobID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := s.scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountMatchesForBatch counts a batch's linked matches for a job. Matches
// on the same job that were never linked into the batch do not count.
func (s *Store) CountMatchesForBatch(legacyRunID, jobID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM matches WHERE job_id = ? AND id IN
		(SELECT match_id FROM run_matches WHERE run_id = ?)`, jobID, legacyRunID).Scan(&n)
	return n, err
}

// TopMatchesForBatch ranks a batch's linked matches for the deep-cap wave:
// standard score descending, then match score descending, then resume id
// ascending.
func (s *Store) TopMatchesForBatch(legacyRunID, jobID int64, limit int) ([]*models.Match, error) {
	rows, err := s.db.Query(matchSelect+` WHERE job_id = ? AND id IN
		(SELECT match_id FROM run_matches WHERE run_id = ?)
		ORDER BY COALESCE(standard_score, -1) DESC, match_score DESC, resume_id ASC
		LIMIT ?`, jobID, legacyRunID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := s.scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteMatch removes a match row and its batch links.
func (s *Store) DeleteMatch(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM run_matches WHERE match_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateLegacyRun creates a named batch grouping.
func (s *Store) CreateLegacyRun(name string, threshold int) (*models.LegacyRun, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO runs (name, threshold, created_at) VALUES (?, ?, ?)`,
		name, threshold, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.LegacyRun{ID: id, Name: name, Threshold: threshold, CreatedAt: now}, nil
}

// ListLegacyRuns returns all batch groupings, newest first.
func (s *Store) ListLegacyRuns() ([]*models.LegacyRun, error) {
	rows, err := s.db.Query(`SELECT id, name, threshold, created_at FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LegacyRun
	for rows.Next() {
		var lr models.LegacyRun
		if err := rows.Scan(&lr.ID, &lr.Name, &lr.Threshold, &lr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &lr)
	}
	return out, rows.Err()
}

// LinkMatchToLegacyRun links a match into a batch. A match may belong to
// several batches; relinking is a no-op.
func (s *Store) LinkMatchToLegacyRun(legacyRunID, matchID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO run_matches (run_id, match_id) VALUES (?, ?)`,
		legacyRunID, matchID)
	return err
}

// ListMatchesForLegacyRun returns the matches linked into a batch.
func (s *Store) ListMatchesForLegacyRun(legacyRunID int64) ([]*models.Match, error) {
	rows, err := s.db.Query(matchSelect+` WHERE id IN
		(SELECT match_id FROM run_matches WHERE run_id = ?)
		ORDER BY match_score DESC, id ASC`, legacyRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := s.scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

const matchSelect = `SELECT id, job_id, resume_id, candidate_name, match_score, standard_score,
	decision, strategy, reasoning, standard_reasoning, missing_skills, match_details FROM matches`

func (s *Store) scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m             models.Match
		standardScore sql.NullInt64
		decision      string
		strategy      string
		missingJSON   string
		detailsJSON   string
	)
	err := row.Scan(&m.ID, &m.JobID, &m.ResumeID, &m.CandidateName, &m.MatchScore, &standardScore,
		&decision, &strategy, &m.Reasoning, &m.StandardReasoning, &missingJSON, &detailsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Decision = models.Decision(decision)
	m.Strategy = models.Strategy(strategy)
	if standardScore.Valid {
		v := int(standardScore.Int64)
		m.StandardScore = &v
	}
	if err := json.Unmarshal([]byte(missingJSON), &m.MissingSkills); err != nil {
		return nil, fmt.Errorf("failed to decode missing skills for match %d: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(detailsJSON), &m.MatchDetails); err != nil {
		return nil, fmt.Errorf("failed to decode match details for match %d: %w", m.ID, err)
	}
	return &m, nil
}
