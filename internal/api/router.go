package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/timmy/facecheck/internal/api/handler"
	"github.com/timmy/facecheck/internal/api/middleware"
	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/metrics"
	"github.com/timmy/facecheck/internal/service"
)

// RouterDeps holds what the router needs to build its handlers.
type RouterDeps struct {
	IntegrityService *service.IntegrityService
	Logger           *logger.Logger
	Ping             func(ctx context.Context) error
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, cfg config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Ping)
	integrityHandler := handler.NewIntegrityHandler(deps.IntegrityService, deps.Logger)
	personHandler := handler.NewPersonHandler(deps.IntegrityService)
	settingsHandler := handler.NewSettingsHandler(deps.IntegrityService)

	// Health check
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Integrity scans and fixes
		v1.POST("/integrity/scans", integrityHandler.RunScan)
		v1.GET("/integrity/scans/status", integrityHandler.ScanStatus)
		v1.POST("/integrity/fixes/:type", integrityHandler.ApplyFix)
		v1.GET("/integrity/issue-types", integrityHandler.IssueTypes)
		v1.GET("/integrity/runs", integrityHandler.ListRuns)
		v1.GET("/integrity/runs/:id", integrityHandler.GetRun)
		v1.GET("/integrity/runs/:id/report", integrityHandler.GetReport)

		// Duplicate identities
		v1.GET("/persons/duplicates", personHandler.Duplicates)
		v1.POST("/persons/merge", personHandler.Merge)
		v1.DELETE("/persons/:id", personHandler.Delete)

		// Descriptor consistency
		v1.GET("/persons/:id/embeddings/audit", personHandler.AuditEmbeddings)
		v1.POST("/persons/:id/embeddings/clear-outliers", personHandler.ClearOutliers)
		v1.POST("/persons/:id/embeddings/reinstate", personHandler.Reinstate)
		v1.POST("/embeddings/mass-audit", personHandler.MassAudit)

		// Threshold overrides
		v1.GET("/settings", settingsHandler.List)
		v1.PUT("/settings/:key", settingsHandler.Update)
	}

	return r
}
