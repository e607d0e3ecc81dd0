package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"resumatch/internal/workers"
)

// WorkerStatsHandler reports pool liveness and per-worker state.
func WorkerStatsHandler(pool *workers.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, pool.Stats())
	}
}
