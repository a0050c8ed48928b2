package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/shared"
	"github.com/erp/gridsync/internal/infrastructure/logger"
	"github.com/erp/gridsync/internal/interfaces/http/dto"
	"github.com/erp/gridsync/internal/interfaces/http/middleware"
)

// anonymousActor is recorded when a request names no actor
const anonymousActor = "anonymous"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getActor returns the acting user named by the X-Actor header
func getActor(c *gin.Context) string {
	if actor := c.GetHeader(logger.ActorHeader); actor != "" {
		return actor
	}
	return anonymousActor
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the request body into req and answers 400 on failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindURI binds path parameters into req and answers 400 on failure
func (h *BaseHandler) BindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// HandleError converts domain errors to HTTP responses. Anything else is
// logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.respondError(c, err, nil)
}

// respondError writes the error envelope, with data attached when the
// failed call still produced a state worth showing.
func (h *BaseHandler) respondError(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		resp := dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID)
		if data != nil {
			resp = resp.WithData(data)
		}
		c.JSON(dto.GetHTTPStatus(resp.Error.Code), resp)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.Error(c, http.StatusGatewayTimeout, dto.ErrCodeTimeout, "The request timed out")
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
