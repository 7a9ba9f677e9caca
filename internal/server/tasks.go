package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// ListDeadTasks exposes tasks that exhausted their attempt budget. Operator
// endpoint, not part of the public API.
func (s *Server) ListDeadTasks(c *gin.Context) {
	limit := parseLimit(c, defaultListLimit)

	tasks, err := s.queue.ListDead(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// ListAuditEvents returns recent audit events for an action.
func (s *Server) ListAuditEvents(c *gin.Context) {
	action := c.DefaultQuery("action", "account.signup")
	limit := parseLimit(c, defaultListLimit)

	events, err := s.auditsvc.ListByAction(c.Request.Context(), action, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return def
	}
	return limit
}
