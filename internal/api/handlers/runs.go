package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/config"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// EnqueueRunHandler enqueues a typed run directly.
func EnqueueRunHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.EnqueueRunRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		jobType := models.JobType(req.JobType)
		if !jobType.IsValid() {
			return errorJSON(c, http.StatusBadRequest, "validation_failed",
				fmt.Sprintf("unknown job_type %q", req.JobType))
		}

		run, err := st.EnqueueRun(jobType, req.Payload)
		if err != nil {
			return storeError(c, err)
		}

		return c.JSON(http.StatusAccepted, models.EnqueuedResponse{
			RunID:     run.ID,
			JobType:   run.JobType,
			Status:    run.Status,
			Message:   "Run queued",
			Timestamp: time.Now(),
		})
	}
}

// ListRunsHandler returns runs newest first, with optional status and
// job_type filters and a bounded window.
func ListRunsHandler(st *store.Store, cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := models.RunStatus(c.QueryParam("status"))
		jobType := models.JobType(c.QueryParam("job_type"))
		limit := queryInt(c, "limit", 100)

		runs, err := st.ListRuns(status, jobType, limit)
		if err != nil {
			return storeError(c, err)
		}

		out := make([]*models.RunOut, 0, len(runs))
		for _, run := range runs {
			out = append(out, models.NewRunOut(run, cfg.StuckAfter()))
		}
		return c.JSON(http.StatusOK, out)
	}
}

// GetRunHandler returns one run, with stuck detection applied.
func GetRunHandler(st *store.Store, cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid run id")
		}
		run, err := st.GetRun(id)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.NewRunOut(run, cfg.StuckAfter()))
	}
}

// GetRunLogsHandler returns the tail of a run's log stream.
func GetRunLogsHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid run id")
		}
		if _, err := st.GetRun(id); err != nil {
			return storeError(c, err)
		}

		logs, err := st.ListRunLogs(id, queryInt(c, "limit", 500))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.RunLogsResponse{
			RunID: id,
			Logs:  logs,
			Count: len(logs),
		})
	}
}

// ResumeRunHandler requeues a paused, failed or stuck run, preserving any
// deep-scan checkpoint in its payload.
func ResumeRunHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid run id")
		}
		if err := st.RequeueRun(id); err != nil {
			return storeError(c, err)
		}

		run, err := st.GetRun(id)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.EnqueuedResponse{
			RunID:     run.ID,
			JobType:   run.JobType,
			Status:    run.Status,
			Message:   "Run requeued",
			Timestamp: time.Now(),
		})
	}
}

// PauseRunHandler requests a cooperative pause at the run's next step
// boundary.
func PauseRunHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid run id")
		}

		var req models.PauseRunRequest
		_ = c.Bind(&req)

		if err := st.RequestPause(id, req.Reason); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"run_id":  id,
			"message": "Pause requested; the run will pause at its next step boundary",
		})
	}
}

// CancelRunHandler cancels a run; clean=true drops its deep-scan checkpoint.
func CancelRunHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid run id")
		}

		var req models.CancelRunRequest
		_ = c.Bind(&req)

		if err := st.CancelRun(id, req.Clean); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"run_id":  id,
			"message": "Run canceled",
			"clean":   req.Clean,
		})
	}
}
