package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// ListTagsHandler returns all tags ordered by name.
func ListTagsHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		tags, err := st.ListTags()
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, tags)
	}
}

// CreateTagHandler creates a tag, returning the existing row when the name
// is already taken (case-insensitively).
func CreateTagHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.TagRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		tag, err := st.CreateTag(req.Name)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, tag)
	}
}

// RenameTagHandler renames a tag and rewrites the tag lists of every
// document that carries it.
func RenameTagHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid tag id")
		}

		var req models.TagRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		}
		if err := validate.Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		tag, err := st.RenameTag(id, req.Name)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, tag)
	}
}

// DeleteTagHandler removes a tag and strips it from every document.
func DeleteTagHandler(st *store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "invalid tag id")
		}
		if err := st.DeleteTag(id); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
