package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/extractor"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// ListResumesHandler returns all stored resumes.
func ListResumesHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		resumes, err := st.ListResumes()
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, resumes)
	}
}

// GetResumeHandler returns one resume by id.
func GetResumeHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid resume id")
		}
		resume, err := st.GetResume(id)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, resume)
	}
}

// CreateResumeHandler enqueues ingestion of resume text.
func CreateResumeHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.IngestTextRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		run, err := st.EnqueueRun(models.JobTypeIngestResume, models.RunPayload{
			Filename: req.Filename,
			Content:  req.Content,
			Tags:     req.Tags,
		})
		if err != nil {
			return storeError(c, err)
		}

		return c.JSON(http.StatusAccepted, models.EnqueuedResponse{
			RunID:     run.ID,
			JobType:   run.JobType,
			Status:    run.Status,
			Message:   fmt.Sprintf("Ingestion of %s queued", req.Filename),
			Timestamp: time.Now(),
		})
	}
}

// UploadResumeHandler accepts a multipart file upload and enqueues
// file-based resume ingestion.
func UploadResumeHandler(st *store.Store, ex *extractor.Extractor) echo.HandlerFunc {
	return uploadHandler(st, ex, models.JobTypeIngestResumeFile)
}

// UploadAutoHandler accepts a file of unknown kind; the run classifies it
// as a job description or resume before ingesting.
func UploadAutoHandler(st *store.Store, ex *extractor.Extractor) echo.HandlerFunc {
	return uploadHandler(st, ex, models.JobTypeIngestAutoFile)
}

// UpdateResumeHandler replaces a resume's content and tags.
func UpdateResumeHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid resume id")
		}
		existing, err := st.GetResume(id)
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

		resume, err := st.UpsertResume(existing.Filename, content, existing.Profile, tags)
		if err != nil {
			return storeError(c, err)
		}
		if err := st.EnsureTags(tags); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, resume)
	}
}

// DeleteResumeHandler deletes a resume and cascades through its matches.
func DeleteResumeHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid resume id")
		}
		if err := st.DeleteResume(id); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
