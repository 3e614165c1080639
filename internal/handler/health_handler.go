package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/salonrush/queue-broker/internal/hub"
	"github.com/salonrush/queue-broker/internal/service"
	"github.com/salonrush/queue-broker/pkg/response"
)

// HealthHandler serves liveness, readiness and broker status endpoints.
type HealthHandler struct {
	hub       *hub.Hub
	service   *service.QueueService
	version   string
	startedAt time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(h *hub.Hub, svc *service.QueueService, version string) *HealthHandler {
	return &HealthHandler{
		hub:       h,
		service:   svc,
		version:   version,
		startedAt: time.Now(),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready. The broker holds all state in memory, so it
// is ready as soon as it is serving.
func (h *HealthHandler) Ready(c *gin.Context) {
	response.Success(c, gin.H{"status": "ready"})
}

// Status handles GET /api/v1/status with a live broker snapshot.
func (h *HealthHandler) Status(c *gin.Context) {
	response.Success(c, gin.H{
		"sessions":         h.hub.SessionCount(),
		"salons":           h.service.SalonCount(),
		"waiting":          h.service.WaitingTotal(),
		"dropped_messages": h.hub.Dropped(),
		"uptime_seconds":   int(time.Since(h.startedAt).Seconds()),
		"version":          h.version,
	})
}
