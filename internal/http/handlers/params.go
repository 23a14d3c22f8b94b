package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func userIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("userId")))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id: nil uuid")
	}
	return id, nil
}

// intQuery returns def when the parameter is absent.
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
