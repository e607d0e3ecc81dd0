package routes

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"resumatch/internal/api/handlers"
	"resumatch/internal/api/middleware"
	"resumatch/internal/config"
	"resumatch/internal/extractor"
	"resumatch/internal/llm"
	"resumatch/internal/remote"
	"resumatch/internal/store"
	"resumatch/internal/workers"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, st *store.Store, ex *extractor.Extractor, llmManager *llm.Manager, pool *workers.Pool, syncer *remote.Syncer) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	e.Use(middleware.TimeoutConfig(cfg.Server.ReadTimeout))

	// Health check route
	e.GET("/health", handlers.HealthHandler(llmManager, pool))

	// API v1 routes
	v1 := e.Group("/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", handlers.ListJobsHandler(st))
			jobs.POST("", handlers.CreateJobHandler(st))
			jobs.POST("/upload", handlers.UploadJobHandler(st, ex))
			jobs.GET("/:id", handlers.GetJobHandler(st))
			jobs.PUT("/:id", handlers.UpdateJobHandler(st))
			jobs.DELETE("/:id", handlers.DeleteJobHandler(st))
		}

		resumes := v1.Group("/resumes")
		{
			resumes.GET("", handlers.ListResumesHandler(st))
			resumes.POST("", handlers.CreateResumeHandler(st))
			resumes.POST("/upload", handlers.UploadResumeHandler(st, ex))
			resumes.GET("/:id", handlers.GetResumeHandler(st))
			resumes.PUT("/:id", handlers.UpdateResumeHandler(st))
			resumes.DELETE("/:id", handlers.DeleteResumeHandler(st))
		}

		// Auto-classified upload: job or resume decided from the text itself
		v1.POST("/ingest/auto", handlers.UploadAutoHandler(st, ex))

		matches := v1.Group("/matches")
		{
			matches.GET("", handlers.ListMatchesHandler(st))
			matches.POST("/score", handlers.ScoreMatchHandler(st))
			matches.GET("/:id", handlers.GetMatchHandler(st))
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRunsHandler(st, cfg))
			runs.POST("", handlers.EnqueueRunHandler(st))
			runs.GET("/:id", handlers.GetRunHandler(st, cfg))
			runs.GET("/:id/logs", handlers.GetRunLogsHandler(st))
			runs.POST("/:id/resume", handlers.ResumeRunHandler(st))
			runs.POST("/:id/pause", handlers.PauseRunHandler(st))
			runs.POST("/:id/cancel", handlers.CancelRunHandler(st))
		}

		tags := v1.Group("/tags")
		{
			tags.GET("", handlers.ListTagsHandler(st))
			tags.POST("", handlers.CreateTagHandler(st))
			tags.PUT("/:id", handlers.RenameTagHandler(st))
			tags.DELETE("/:id", handlers.DeleteTagHandler(st))
		}

		legacy := v1.Group("/legacy-runs")
		{
			legacy.GET("", handlers.ListLegacyRunsHandler(st))
			legacy.POST("", handlers.CreateLegacyRunHandler(st))
			legacy.GET("/:id/matches", handlers.ListMatchesForLegacyRunHandler(st))
		}

		settings := v1.Group("/settings")
		{
			settings.POST("/sync/push", handlers.SyncPushHandler(syncer))
			settings.POST("/sync/pull", handlers.SyncPullHandler(syncer))
			settings.GET("/write-mode", handlers.LockStatusHandler(syncer))
			settings.POST("/write-mode/enable", handlers.EnableWriteModeHandler(syncer))
			settings.POST("/write-mode/disable", handlers.DisableWriteModeHandler(syncer))
			settings.POST("/write-mode/force-unlock", handlers.ForceUnlockHandler(syncer))
		}

		// Worker monitoring routes
		v1.GET("/workers/stats", handlers.WorkerStatsHandler(pool))
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "Resumatch Engine",
			"version": "1.0.0",
			"status":  "running",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
}
