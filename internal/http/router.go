package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-mastery/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-mastery/internal/http/middleware"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	HealthHandler      *httpH.HealthHandler
	MasteryHandler     *httpH.MasteryHandler
	ProgressHandler    *httpH.ProgressHandler
	CacheHandler       *httpH.CacheHandler
	MaintenanceHandler *httpH.MaintenanceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Per-user mastery
	if h := cfg.MasteryHandler; h != nil {
		users := api.Group("/users/:userId")
		users.POST("/reviews/batch", h.SubmitReviews)
		users.GET("/reviews/scheduled", h.GetScheduledReviews)
		users.GET("/reviews/overdue", h.GetOverdueReviews)
		users.GET("/reviews/calendar", h.GetReviewCalendar)
		users.POST("/reviews/reschedule", h.RescheduleReviews)
		users.GET("/daily-tasks", h.GetDailyTasks)
		users.GET("/daily-summary", h.GetDailySummary)
		users.GET("/stats", h.GetUserStats)
		users.GET("/preferences", h.GetPreferences)
		users.PUT("/preferences", h.UpdatePreferences)
		users.POST("/preferences/changed", h.PreferencesChanged)
	}

	// Learner progress
	if h := cfg.ProgressHandler; h != nil {
		users := api.Group("/users/:userId")
		users.POST("/daily-tasks/more", h.GetAdditionalTasks)
		users.GET("/primitives/:primitiveId/progression", h.CheckProgression)
		users.POST("/primitives/:primitiveId/progression", h.AdvanceLevel)
	}

	// Cache admin
	if h := cfg.CacheHandler; h != nil {
		api.GET("/cache/stats", h.GetStats)
		api.DELETE("/cache", h.Clear)
		api.DELETE("/cache/users/:userId", h.InvalidateUser)
	}

	// Maintenance
	if h := cfg.MaintenanceHandler; h != nil {
		api.GET("/maintenance/jobs", h.ListJobs)
		api.POST("/maintenance/jobs/:name/run", h.RunJob)
		api.GET("/maintenance/summary-stats", h.GetSummaryStats)
	}

	return r
}
