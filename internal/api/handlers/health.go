package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/llm"
	"resumatch/internal/workers"
	"resumatch/pkg/models"
)

var startTime = time.Now()

// HealthHandler reports liveness plus gateway and pool health.
func HealthHandler(llmManager *llm.Manager, pool *workers.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := map[string]string{"api": "ok"}

		if llmManager.IsHealthy() {
			checks["llm"] = "ok"
		} else {
			checks["llm"] = "unavailable"
		}
		if pool.IsRunning() {
			checks["workers"] = "ok"
		} else {
			checks["workers"] = "stopped"
		}

		return c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}
