package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/http/response"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type MasteryHandler struct {
	hooks    services.MasteryHooks
	cache    services.MasteryCacheService
	schedule services.ReviewScheduleService
	prefs    services.PreferencesService
	now      func() time.Time
}

func NewMasteryHandler(
	hooks services.MasteryHooks,
	cache services.MasteryCacheService,
	schedule services.ReviewScheduleService,
	prefs services.PreferencesService,
) *MasteryHandler {
	return &MasteryHandler{hooks: hooks, cache: cache, schedule: schedule, prefs: prefs, now: time.Now}
}

type submitReviewsRequest struct {
	Outcomes []services.ReviewOutcome `json:"outcomes"`
}

// POST /api/users/:userId/reviews/batch
func (h *MasteryHandler) SubmitReviews(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var req submitReviewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Outcomes) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("outcomes must not be empty"))
		return
	}
	result, err := h.hooks.SubmitReviews(c.Request.Context(), userID, req.Outcomes)
	if err != nil {
		// committed chunks are still reported
		status, code := response.Classify(err, "batch_failed")
		response.RespondErrorWith(c, status, code, err, gin.H{"result": result})
		return
	}
	response.RespondOK(c, gin.H{"result": result})
}

// GET /api/users/:userId/daily-tasks
func (h *MasteryHandler) GetDailyTasks(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	tasks, err := h.cache.GetDailyTasks(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, "daily_tasks_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": tasks})
}

// GET /api/users/:userId/daily-summary
func (h *MasteryHandler) GetDailySummary(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	rows, err := h.cache.GetDailySummary(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, "daily_summary_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"summaries": rows})
}

// GET /api/users/:userId/stats
func (h *MasteryHandler) GetUserStats(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	stats, err := h.cache.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, "user_stats_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// GET /api/users/:userId/reviews/scheduled?days=7
func (h *MasteryHandler) GetScheduledReviews(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	days, err := intQuery(c, "days", services.DefaultScheduleWindowDays)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_days", err)
		return
	}
	reviews, err := h.schedule.GetScheduledReviews(c.Request.Context(), userID, days)
	if err != nil {
		response.RespondServiceError(c, "scheduled_reviews_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"reviews": reviews})
}

// GET /api/users/:userId/reviews/overdue
func (h *MasteryHandler) GetOverdueReviews(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	reviews, err := h.schedule.GetOverdueReviews(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, "overdue_reviews_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"reviews": reviews})
}

// GET /api/users/:userId/reviews/calendar?year=2026&month=3
// Year and month default to the current UTC month.
func (h *MasteryHandler) GetReviewCalendar(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	now := h.now().UTC()
	year, err := intQuery(c, "year", now.Year())
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_year", err)
		return
	}
	month, err := intQuery(c, "month", int(now.Month()))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_month", err)
		return
	}
	calendar, err := h.schedule.GetReviewCalendar(c.Request.Context(), userID, year, time.Month(month))
	if err != nil {
		response.RespondServiceError(c, "review_calendar_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"year": year, "month": month, "calendar": calendar})
}

type rescheduleRequest struct {
	Reschedules []services.RescheduleRequest `json:"reschedules"`
}

// POST /api/users/:userId/reviews/reschedule
func (h *MasteryHandler) RescheduleReviews(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	moved, err := h.schedule.Reschedule(c.Request.Context(), userID, req.Reschedules)
	if err != nil {
		response.RespondServiceError(c, "reschedule_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"rescheduled": moved})
}

// GET /api/users/:userId/preferences
func (h *MasteryHandler) GetPreferences(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	prefs, err := h.prefs.GetBucketPreferences(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, "preferences_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"preferences": prefs})
}

// PUT /api/users/:userId/preferences
// Saving fires the preferences-changed hook so cached tasks are rebuilt.
func (h *MasteryHandler) UpdatePreferences(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var prefs types.UserBucketPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	prefs.UserID = userID
	saved, err := h.prefs.SaveBucketPreferences(c.Request.Context(), prefs)
	if err != nil {
		response.RespondServiceError(c, "save_preferences_failed", err)
		return
	}
	if err := h.hooks.OnUserPreferencesChanged(c.Request.Context(), userID); err != nil {
		response.RespondServiceError(c, "preferences_changed_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"preferences": saved})
}

// POST /api/users/:userId/preferences/changed
func (h *MasteryHandler) PreferencesChanged(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	if err := h.hooks.OnUserPreferencesChanged(c.Request.Context(), userID); err != nil {
		response.RespondServiceError(c, "preferences_changed_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
