package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// ListMatchesHandler returns matches, optionally filtered by job id.
func ListMatchesHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID := int64(queryInt(c, "job_id", 0))
		matches, err := st.ListMatches(jobID)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, matches)
	}
}

// GetMatchHandler returns one match by id.
func GetMatchHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid match id")
		}
		match, err := st.GetMatch(id)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, match)
	}
}

// ScoreMatchHandler enqueues scoring for one (job, resume) pair. Scoring
// always goes through the queue; the response carries the run to poll.
func ScoreMatchHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ScoreMatchRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		// Fail fast on unknown ids instead of queueing a doomed run.
		if _, err := st.GetJob(req.JobID); err != nil {
			return storeError(c, err)
		}
		if _, err := st.GetResume(req.ResumeID); err != nil {
			return storeError(c, err)
		}

		run, err := st.EnqueueRun(models.JobTypeScoreMatch, models.RunPayload{
			JobID:      req.JobID,
			ResumeID:   req.ResumeID,
			Threshold:  req.Threshold,
			AutoDeep:   req.AutoDeep,
			ForcePass1: req.ForcePass1,
			ForceDeep:  req.ForceDeep,
		})
		if err != nil {
			return storeError(c, err)
		}

		return c.JSON(http.StatusAccepted, models.EnqueuedResponse{
			RunID:     run.ID,
			JobType:   run.JobType,
			Status:    run.Status,
			Message:   fmt.Sprintf("Scoring queued for job %d / resume %d", req.JobID, req.ResumeID),
			Timestamp: time.Now(),
		})
	}
}
