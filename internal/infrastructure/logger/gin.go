package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ActorHeader names the acting user on grid requests
	ActorHeader = "X-Actor"
	// SessionParam is the route parameter carrying the grid session ID
	SessionParam = "session_id"

	ginLoggerKey    = "logger"
	ginRequestIDKey = "request_id"
)

// GinMiddleware logs each HTTP request and stores a request-scoped logger
// in both the gin context and the request context, so handlers and the
// session layer below them share the same correlation fields.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := c.Request.Context()
		if id := c.GetString(ginRequestIDKey); id != "" {
			ctx = WithRequestID(ctx, id)
		}
		if sid := c.Param(SessionParam); sid != "" {
			ctx = WithSessionID(ctx, sid)
		}
		if actor := c.GetHeader(ActorHeader); actor != "" {
			ctx = WithActor(ctx, actor)
		}

		// L(ctx) adds the correlation fields itself, so only the gin copy carries them
		base := logger.With(
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
		)
		reqLogger := base.With(Fields(ctx)...)
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(WithContext(ctx, base))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		const msg = "HTTP Request"
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error(msg, fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// Recovery recovers from handler panics, logs them and answers with the
// standard error envelope.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", c.GetString(ginRequestIDKey)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_ERROR",
						"message": "An internal error occurred",
					},
				})
			}
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger from gin context
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}
