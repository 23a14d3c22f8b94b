package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-mastery/internal/http/response"
	"github.com/yungbote/neurobridge-mastery/internal/jobs/maintenance"
	"github.com/yungbote/neurobridge-mastery/internal/platform/apierr"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

// JobRunner is the part of the maintenance scheduler the handler needs.
type JobRunner interface {
	Trigger(ctx context.Context, name string) error
	Jobs() []maintenance.JobStatus
}

type MaintenanceHandler struct {
	jobs      JobRunner
	summaries services.SummaryMaintenanceService
}

func NewMaintenanceHandler(jobs JobRunner, summaries services.SummaryMaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{jobs: jobs, summaries: summaries}
}

// GET /api/maintenance/jobs
func (h *MaintenanceHandler) ListJobs(c *gin.Context) {
	response.RespondOK(c, gin.H{"jobs": h.jobs.Jobs()})
}

// POST /api/maintenance/jobs/:name/run
// Runs synchronously; 409 when the job is already running.
func (h *MaintenanceHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	err := h.jobs.Trigger(c.Request.Context(), name)
	switch {
	case err == nil:
		response.RespondOK(c, gin.H{"job": name, "ok": true})
	case errors.Is(err, maintenance.ErrUnknownJob):
		response.RespondServiceError(c, "", apierr.NotFound("unknown_job", err))
	case errors.Is(err, maintenance.ErrJobRunning):
		response.RespondServiceError(c, "", apierr.Conflict("job_running", err))
	default:
		response.RespondError(c, http.StatusInternalServerError, "job_failed", err)
	}
}

// GET /api/maintenance/summary-stats
func (h *MaintenanceHandler) GetSummaryStats(c *gin.Context) {
	stats, err := h.summaries.GetSummaryStats(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, "summary_stats_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}
