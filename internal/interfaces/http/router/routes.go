package router

import (
	"github.com/erp/gridsync/internal/interfaces/http/handler"
)

// SessionRoutes maps the editing session API
func SessionRoutes(h *handler.SessionHandler) *DomainGroup {
	sessions := NewDomainGroup("sessions", "/sessions")
	sessions.POST("", h.Create)

	one := sessions.Group("session", "/:session_id")
	one.GET("", h.Get)
	one.DELETE("", h.Close)
	one.POST("/load", h.Load)
	one.POST("/reload", h.Reload)
	one.POST("/edits/start", h.StartEdit)
	one.POST("/edits/stop", h.StopEdit)
	one.PUT("/cells", h.SetCell)
	one.POST("/selection", h.Select)
	one.POST("/rows", h.CreateRow)
	one.DELETE("/rows/:grid/:row", h.DeleteRow)
	one.POST("/rows/:grid/:row/undelete", h.UndeleteRow)
	one.POST("/confirmations/:confirmation_id", h.ResolveConfirmation)
	one.POST("/commit", h.Commit)
	return sessions
}

// ScreenRoutes maps the screen catalogue and committed-row reads
func ScreenRoutes(h *handler.ScreenHandler) *DomainGroup {
	screens := NewDomainGroup("screens", "/screens")
	screens.GET("", h.List)
	screens.GET("/:screen/committed", h.Committed)
	return screens
}

// SystemRoutes maps system information
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").GET("/info", h.GetSystemInfo)
}
