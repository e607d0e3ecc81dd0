package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/remote"
	"resumatch/pkg/models"
)

func syncNotConfigured(c echo.Context) error {
	return errorJSON(c, http.StatusBadRequest, "sync_not_configured",
		"No remote repository is configured")
}

// SyncPushHandler pushes the local database to the remote repository.
// Requires write mode and a lock we still own.
func SyncPushHandler(syncer *remote.Syncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !syncer.Configured() {
			return syncNotConfigured(c)
		}
		if err := syncer.Push(c.Request().Context()); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.SyncResponse{
			Action:    "push",
			Message:   "Database pushed to remote",
			Timestamp: time.Now(),
		})
	}
}

// SyncPullHandler replaces the local database with the remote copy.
func SyncPullHandler(syncer *remote.Syncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !syncer.Configured() {
			return syncNotConfigured(c)
		}
		if err := syncer.Pull(c.Request().Context()); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.SyncResponse{
			Action:    "pull",
			Message:   "Database pulled from remote",
			Timestamp: time.Now(),
		})
	}
}

// EnableWriteModeHandler acquires the remote writer lock.
func EnableWriteModeHandler(syncer *remote.Syncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !syncer.Configured() {
			return syncNotConfigured(c)
		}
		if err := syncer.EnableWriteMode(c.Request().Context()); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.WriteModeResponse{
			WriteMode: true,
			Owner:     syncer.Owner(),
			Message:   "Write mode enabled",
		})
	}
}

// DisableWriteModeHandler releases the remote writer lock.
func DisableWriteModeHandler(syncer *remote.Syncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !syncer.Configured() {
			return syncNotConfigured(c)
		}
		if err := syncer.DisableWriteMode(c.Request().Context()); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.WriteModeResponse{
			WriteMode: false,
			Message:   "Write mode disabled",
		})
	}
}

// ForceUnlockHandler removes the remote writer lock regardless of owner.
func ForceUnlockHandler(syncer *remote.Syncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !syncer.Configured() {
			return syncNotConfigured(c)
		}
		if err := syncer.ForceUnlock(c.Request().Context()); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, models.WriteModeResponse{
			WriteMode: syncer.InWriteMode(),
			Message:   "Writer lock removed",
		})
	}
}

// LockStatusHandler reports the current remote writer-lock holder, if any.
func LockStatusHandler(syncer *remote.Syncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !syncer.Configured() {
			return syncNotConfigured(c)
		}
		lock, err := syncer.LockStatus(c.Request().Context())
		if err != nil {
			return storeError(c, err)
		}
		resp := models.WriteModeResponse{WriteMode: syncer.InWriteMode()}
		if lock != nil {
			resp.Owner = lock.Owner
			resp.Message = "Lock held since " + lock.CreatedAt.Format(time.RFC3339)
		} else {
			resp.Message = "No writer lock held"
		}
		return c.JSON(http.StatusOK, resp)
	}
}
