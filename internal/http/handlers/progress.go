package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-mastery/internal/http/response"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

// ProgressHandler serves the learner-driven endpoints: asking for more tasks and climbing
// the mastery ladder.
type ProgressHandler struct {
	tasks       services.TaskGenerator
	progression services.ProgressionService
}

func NewProgressHandler(tasks services.TaskGenerator, progression services.ProgressionService) *ProgressHandler {
	return &ProgressHandler{tasks: tasks, progression: progression}
}

// POST /api/users/:userId/daily-tasks/more
func (h *ProgressHandler) GetAdditionalTasks(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var done services.TaskCompletion
	if err := c.ShouldBindJSON(&done); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	more, err := h.tasks.GetAdditionalTasks(c.Request.Context(), userID, done)
	if err != nil {
		response.RespondServiceError(c, "additional_tasks_failed", err)
		return
	}
	response.RespondOK(c, more)
}

// GET /api/users/:userId/primitives/:primitiveId/progression?blueprintId=...
func (h *ProgressHandler) CheckProgression(c *gin.Context) {
	userID, primitiveID, err := userAndPrimitive(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	blueprintID, err := uuid.Parse(strings.TrimSpace(c.Query("blueprintId")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_blueprint_id", err)
		return
	}
	check, err := h.progression.CheckProgression(c.Request.Context(), userID, primitiveID, blueprintID)
	if err != nil {
		response.RespondServiceError(c, "progression_check_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"progression": check})
}

type advanceLevelRequest struct {
	BlueprintID uuid.UUID `json:"blueprint_id"`
}

// POST /api/users/:userId/primitives/:primitiveId/progression
func (h *ProgressHandler) AdvanceLevel(c *gin.Context) {
	userID, primitiveID, err := userAndPrimitive(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req advanceLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	check, err := h.progression.AdvanceLevel(c.Request.Context(), userID, primitiveID, req.BlueprintID)
	if err != nil {
		// blocked advances still report the score that blocked them
		status, code := response.Classify(err, "advance_level_failed")
		response.RespondErrorWith(c, status, code, err, gin.H{"progression": check})
		return
	}
	response.RespondOK(c, gin.H{"progression": check})
}

func userAndPrimitive(c *gin.Context) (uuid.UUID, string, error) {
	userID, err := userIDParam(c)
	if err != nil {
		return uuid.Nil, "", err
	}
	primitiveID := strings.TrimSpace(c.Param("primitiveId"))
	if primitiveID == "" {
		return uuid.Nil, "", errors.New("missing primitive id")
	}
	return userID, primitiveID, nil
}
