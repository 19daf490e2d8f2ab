package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jacksuyu/demand-signals/internal/telemetry"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, tel *telemetry.Provider) {
	// Health and readiness checks
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadyCheck)

	if tel != nil {
		router.GET("/metrics", gin.WrapH(tel.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/extract", handler.Extract)  // POST /api/v1/extract
		v1.GET("/runs", handler.ListRuns)     // GET  /api/v1/runs
		v1.GET("/runs/:id", handler.GetRun)   // GET  /api/v1/runs/:id
	}
}
