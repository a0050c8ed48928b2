package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/infrastructure/logger"
	"github.com/erp/gridsync/internal/interfaces/http/dto"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SessionCounter reports the number of open sessions
type SessionCounter interface {
	Count() int
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	sessions  SessionCounter
	checks    []HealthCheck
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, sessions SessionCounter, checks ...HealthCheck) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		sessions:  sessions,
		checks:    checks,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	OpenSessions int    `json:"open_sessions"`
}

// GetSystemInfo returns version, uptime and the number of open sessions
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:         h.name,
		Version:      h.version,
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		OpenSessions: h.sessions.Count(),
	})
}

// Health runs every dependency check. Any failure answers 503.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	reqLog := logger.GetGinLogger(c)
	status := http.StatusOK
	components := make(map[string]string, len(h.checks))

	for _, check := range h.checks {
		if err := check.Check(c.Request.Context()); err != nil {
			reqLog.Warn("Health check failed", zap.String("component", check.Name), zap.Error(err))
			components[check.Name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		components[check.Name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, dto.Response{
		Success: status == http.StatusOK,
		Data: gin.H{
			"status":     state,
			"time":       time.Now().Format(time.RFC3339),
			"components": components,
		},
	})
}
