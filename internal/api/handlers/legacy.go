package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// ListLegacyRunsHandler returns all batches, newest first.
func ListLegacyRunsHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		runs, err := st.ListLegacyRuns()
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, runs)
	}
}

// ListMatchesForLegacyRunHandler returns the matches linked to one batch.
func ListMatchesForLegacyRunHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid legacy run id")
		}
		matches, err := st.ListMatchesForLegacyRun(id)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, matches)
	}
}

// CreateLegacyRunHandler submits a batch: one job scored against many
// resumes. When auto-deep is on and a deep cap is set, phase one runs
// Standard-only and a coordinator promotes the top scorers to Deep Scan
// once every resume in the group has a match row.
func CreateLegacyRunHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.LegacyRunRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		if _, err := st.GetJob(req.JobID); err != nil {
			return storeError(c, err)
		}

		legacyRun, err := st.CreateLegacyRun(req.Name, req.Threshold)
		if err != nil {
			return storeError(c, err)
		}

		capped := req.AutoDeep && req.MaxDeepScansPerJD > 0 && !req.ForceDeep
		groupKey := ""
		if capped {
			groupKey = uuid.New().String()
		}

		runIDs := make([]int64, 0, len(req.ResumeIDs))
		for _, resumeID := range req.ResumeIDs {
			payload := models.RunPayload{
				JobID:       req.JobID,
				ResumeID:    resumeID,
				Threshold:   req.Threshold,
				AutoDeep:    req.AutoDeep,
				ForceDeep:   req.ForceDeep,
				LegacyRunID: legacyRun.ID,
			}
			if capped {
				// Phase one is Standard-only; the deep wave is enqueued by
				// the coordinator once the whole group has scored.
				payload.AutoDeep = false
				payload.DeepCapBatchMode = true
				payload.BatchGroupKey = groupKey
				payload.BatchTotalForJob = len(req.ResumeIDs)
				payload.BatchDeepCap = req.MaxDeepScansPerJD
			}

			run, err := st.EnqueueRun(models.JobTypeScoreMatch, payload)
			if err != nil {
				return storeError(c, err)
			}
			runIDs = append(runIDs, run.ID)
		}

		return c.JSON(http.StatusAccepted, models.LegacyRunResponse{
			LegacyRunID: legacyRun.ID,
			RunIDs:      runIDs,
			Message:     "Batch queued",
		})
	}
}
