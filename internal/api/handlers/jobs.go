package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/extractor"
	"resumatch/internal/logging"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// ListJobsHandler returns all stored job descriptions.
func ListJobsHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		jobs, err := st.ListJobs()
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, jobs)
	}
}

// GetJobHandler returns one job by id.
func GetJobHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid job id")
		}
		job, err := st.GetJob(id)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

// CreateJobHandler enqueues ingestion of job description text.
func CreateJobHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.IngestTextRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		run, err := st.EnqueueRun(models.JobTypeIngestJob, models.RunPayload{
			Filename: req.Filename,
			Content:  req.Content,
			Tags:     req.Tags,
		})
		if err != nil {
			return storeError(c, err)
		}

		logging.GetGlobalLogger().Info("Job ingest enqueued", map[string]interface{}{
			"run_id":   run.ID,
			"filename": req.Filename,
		})
		return c.JSON(http.StatusAccepted, models.EnqueuedResponse{
			RunID:     run.ID,
			JobType:   run.JobType,
			Status:    run.Status,
			Message:   fmt.Sprintf("Ingestion of %s queued", req.Filename),
			Timestamp: time.Now(),
		})
	}
}

// UploadJobHandler accepts a multipart file upload and enqueues file-based
// job ingestion.
func UploadJobHandler(st *store.Store, ex *extractor.Extractor) echo.HandlerFunc {
	return uploadHandler(st, ex, models.JobTypeIngestJobFile)
}

// UpdateJobHandler replaces a job's content and tags, keeping its filename
// identity.
func UpdateJobHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid job id")
		}
		existing, err := st.GetJob(id)
		if err != nil {
			return storeError(c, err)
		}

		var req models.IngestTextRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}

		content := existing.Content
		if req.Content != "" {
			content = req.Content
		}
		tags := existing.Tags
		if req.Tags != nil {
			tags = req.Tags
		}

		job, err := st.UpsertJob(existing.Filename, content, existing.Criteria, tags)
		if err != nil {
			return storeError(c, err)
		}
		if err := st.EnsureTags(tags); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

// DeleteJobHandler deletes a job and cascades through its matches.
func DeleteJobHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid job id")
		}
		if err := st.DeleteJob(id); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// uploadHandler stages a multipart upload and enqueues the given file-based
// ingest run type.
func uploadHandler(st *store.Store, ex *extractor.Extractor, jobType models.JobType) echo.HandlerFunc {
	return func(c echo.Context) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "missing file field")
		}

		src, err := fileHeader.Open()
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "unreadable upload")
		}
		defer src.Close()

		path, err := ex.SaveUpload(fileHeader.Filename, src)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "upload_failed", err.Error())
		}

		var tags []string
		if raw := c.FormValue("tags"); raw != "" {
			tags = splitCommaList(raw)
		}

		run, err := st.EnqueueRun(jobType, models.RunPayload{
			Filename: fileHeader.Filename,
			Path:     path,
			Tags:     tags,
		})
		if err != nil {
			return storeError(c, err)
		}

		return c.JSON(http.StatusAccepted, models.EnqueuedResponse{
			RunID:     run.ID,
			JobType:   run.JobType,
			Status:    run.Status,
			Message:   fmt.Sprintf("Ingestion of %s queued", fileHeader.Filename),
			Timestamp: time.Now(),
		})
	}
}
