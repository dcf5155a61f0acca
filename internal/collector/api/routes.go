package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/pulse/internal/collector/handler"
	"github.com/brightpath/pulse/internal/collector/middleware"
)

// SetupRoutes registers the health probes and the telemetry ingestion
// routes. Ingestion is bot-filtered and rate limited per IP; health probes
// are not.
func SetupRoutes(
	router *gin.Engine,
	telemetry *handler.TelemetryHandler,
	health *handler.HealthHandler,
	maxRequestsPerWindow int,
	rateLimitWindow time.Duration,
	done <-chan struct{},
) {
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadyCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.BotFilter())
	v1.Use(middleware.RateLimiter(maxRequestsPerWindow, rateLimitWindow, done))

	v1.POST("/visitors", telemetry.EnsureVisitor)
	v1.POST("/visitors/:id/touch", telemetry.TouchVisitor)
	v1.POST("/sessions", telemetry.CreateSession)
	v1.POST("/sessions/:id/close", telemetry.CloseSession)
	v1.POST("/pageviews", telemetry.RecordPageView)
	v1.PATCH("/pageviews", telemetry.UpdatePageView)
	v1.POST("/events", telemetry.RecordEvent)
	v1.POST("/journeys", telemetry.StartJourney)
	v1.POST("/journeys/:id/steps", telemetry.RecordJourneyStep)
	v1.POST("/journeys/:id/replay", telemetry.AppendReplayChunk)
}
