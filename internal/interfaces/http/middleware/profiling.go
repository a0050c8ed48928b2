package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/erp/gridsync/internal/infrastructure/telemetry"
)

// ProfilingConfig holds configuration for the profiling label middleware.
type ProfilingConfig struct {
	Enabled   bool
	SkipPaths []string
}

// DefaultProfilingConfig skips the health probe.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health"},
	}
}

// Profiling tags the CPU samples of each request with its method and route,
// so the continuous profiler can split time by endpoint.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}
		telemetry.WithRouteLabels(c.Request.Context(), c.Request.Method, routePattern(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
