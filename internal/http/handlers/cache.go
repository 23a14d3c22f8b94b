package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-mastery/internal/http/response"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type CacheHandler struct {
	cache services.MasteryCacheService
}

func NewCacheHandler(cache services.MasteryCacheService) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// GET /api/cache/stats
func (h *CacheHandler) GetStats(c *gin.Context) {
	response.RespondOK(c, gin.H{"stats": h.cache.GetCacheStats()})
}

// DELETE /api/cache
func (h *CacheHandler) Clear(c *gin.Context) {
	h.cache.ClearCache(c.Request.Context())
	response.RespondOK(c, gin.H{"ok": true})
}

// DELETE /api/cache/users/:userId
func (h *CacheHandler) InvalidateUser(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	h.cache.InvalidateUserCache(c.Request.Context(), userID)
	response.RespondOK(c, gin.H{"ok": true})
}
