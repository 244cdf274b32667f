package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/forum"
)

const apiVersion = "1.0.0"

var endpoints = []string{
	"POST /api/auth/register",
	"POST /api/auth/login",
	"GET /api/questions",
	"POST /api/questions",
	"GET /api/questions/:id",
	"POST /api/questions/:id/vote",
	"POST /api/questions/:id/answers",
	"GET /api/questions/:id/live",
	"POST /api/answers/:id/vote",
	"GET /api/users/profile",
	"GET /api/search?q=query",
	"GET /api/health",
	"GET /metrics",
}

type MetaHandler struct {
	svc *forum.Service
}

func NewMetaHandler(svc *forum.Service) *MetaHandler {
	return &MetaHandler{svc: svc}
}

func (h *MetaHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "StackIt Forum API",
		"version":   apiVersion,
		"endpoints": endpoints,
	})
}

// Health reports store status. It answers 503 when the store is down.
func (h *MetaHandler) Health(c *gin.Context) {
	stats := h.svc.Health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] == "down" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}
