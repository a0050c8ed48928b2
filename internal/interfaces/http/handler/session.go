package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/infrastructure/logger"
	"github.com/erp/gridsync/internal/infrastructure/telemetry"
	"github.com/erp/gridsync/internal/interfaces/http/dto"
)

// SessionHandler exposes grid editing sessions. Every mutating call answers
// with the session view, including drained notifications and refreshes.
type SessionHandler struct {
	BaseHandler
	manager *gridsession.Manager
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(manager *gridsession.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// session resolves the :session_id path parameter. It answers the request
// itself when the ID is malformed or unknown.
func (h *SessionHandler) session(c *gin.Context) (*gridsession.Session, bool) {
	id, err := uuid.Parse(c.Param(logger.SessionParam))
	if err != nil {
		h.BadRequest(c, "Invalid session ID")
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return s, true
}

// respond answers with the view, or with the error and the view alongside
// when the call failed after the session state was read.
func (h *SessionHandler) respond(c *gin.Context, view gridsession.View, err error) {
	if err != nil {
		var data any
		if view.SessionID != uuid.Nil {
			data = view
		}
		h.respondError(c, err, data)
		return
	}
	h.Success(c, view)
}

func queryOf(m map[string]string) grid.Query {
	if m == nil {
		return grid.Query{}
	}
	return grid.Query(m)
}

// Create opens a session on a screen and runs the initial load
// POST /sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	_, view, err := h.manager.Create(c.Request.Context(), req.Screen, getActor(c), queryOf(req.Query))
	if err != nil {
		h.respond(c, view, err)
		return
	}
	h.Created(c, view)
}

// Get returns the session view without waiting for background work
// GET /sessions/:session_id
func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.View(c.Request.Context())
	h.respond(c, view, err)
}

// Close discards the session and its unsaved edits
// DELETE /sessions/:session_id
func (h *SessionHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param(logger.SessionParam))
	if err != nil {
		h.BadRequest(c, "Invalid session ID")
		return
	}
	if err := h.manager.Close(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Load runs a new master query
// POST /sessions/:session_id/load
func (h *SessionHandler) Load(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.LoadRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.Load(c.Request.Context(), queryOf(req.Query))
	h.respond(c, view, err)
}

// Reload repeats the last master query
// POST /sessions/:session_id/reload
func (h *SessionHandler) Reload(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.Reload(c.Request.Context())
	h.respond(c, view, err)
}

// StartEdit puts a cell into edit mode
// POST /sessions/:session_id/edits/start
func (h *SessionHandler) StartEdit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.CellRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.StartEdit(c.Request.Context(), grid.Target(req.Grid), grid.Identity(req.Row), req.Field)
	h.respond(c, view, err)
}

// StopEdit ends the edit on a grid
// POST /sessions/:session_id/edits/stop
func (h *SessionHandler) StopEdit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.StopEditRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.StopEdit(c.Request.Context(), grid.Target(req.Grid))
	h.respond(c, view, err)
}

// SetCell writes a value and runs the change through the cascade
// PUT /sessions/:session_id/cells
func (h *SessionHandler) SetCell(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.SetCellRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.SetCell(c.Request.Context(), grid.Target(req.Grid), grid.Identity(req.Row), req.Field, req.Value)
	h.respond(c, view, err)
}

// Select moves the master selection, loading the dependent rows
// POST /sessions/:session_id/selection
func (h *SessionHandler) Select(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.SelectRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.Select(c.Request.Context(), grid.Identity(req.Row))
	h.respond(c, view, err)
}

// CreateRow appends a new row
// POST /sessions/:session_id/rows
func (h *SessionHandler) CreateRow(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.CreateRowRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.CreateRow(c.Request.Context(), grid.Target(req.Grid), grid.Values(req.Values))
	h.respond(c, view, err)
}

// DeleteRow marks a row deleted, or drops it when it was never saved
// DELETE /sessions/:session_id/rows/:grid/:row
func (h *SessionHandler) DeleteRow(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var uri dto.RowURI
	if !h.BindURI(c, &uri) {
		return
	}
	view, err := s.DeleteRow(c.Request.Context(), grid.Target(uri.Grid), grid.Identity(uri.Row))
	h.respond(c, view, err)
}

// UndeleteRow restores a row marked deleted
// POST /sessions/:session_id/rows/:grid/:row/undelete
func (h *SessionHandler) UndeleteRow(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var uri dto.RowURI
	if !h.BindURI(c, &uri) {
		return
	}
	view, err := s.UndeleteRow(c.Request.Context(), grid.Target(uri.Grid), grid.Identity(uri.Row))
	h.respond(c, view, err)
}

// ResolveConfirmation answers a pending confirmation
// POST /sessions/:session_id/confirmations/:confirmation_id
func (h *SessionHandler) ResolveConfirmation(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("confirmation_id"))
	if err != nil {
		h.BadRequest(c, "Invalid confirmation ID")
		return
	}
	var req dto.ConfirmRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := s.ResolveConfirmation(c.Request.Context(), id, *req.Confirm)
	h.respond(c, view, err)
}

// Commit saves every dirty row and waits for the re-query
// POST /sessions/:session_id/commit
func (h *SessionHandler) Commit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var (
		view gridsession.View
		err  error
	)
	telemetry.WithScreenLabels(c.Request.Context(), s.Screen, "commit", func(ctx context.Context) {
		view, err = s.Commit(ctx)
	})
	h.respond(c, view, err)
}
