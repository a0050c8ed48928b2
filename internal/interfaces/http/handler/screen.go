package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/grid"
)

// ScreenHandler describes the registered screens and serves their last
// committed rows.
type ScreenHandler struct {
	BaseHandler
	registry *gridsession.Registry
	store    grid.CommittedStore
}

// NewScreenHandler creates a new ScreenHandler
func NewScreenHandler(registry *gridsession.Registry, store grid.CommittedStore) *ScreenHandler {
	return &ScreenHandler{registry: registry, store: store}
}

// List returns every screen a session can be opened for
// GET /screens
func (h *ScreenHandler) List(c *gin.Context) {
	screens := h.registry.Screens()
	infos := make([]gridsession.ScreenInfo, 0, len(screens))
	for _, s := range screens {
		infos = append(infos, s.Info())
	}
	h.Success(c, infos)
}

// Committed returns the last committed record of a screen query. The query
// is named either by an explicit key or by its parameters, e.g.
// ?year=2024&status=O.
// GET /screens/:screen/committed
func (h *ScreenHandler) Committed(c *gin.Context) {
	screen, err := h.registry.Lookup(c.Param("screen"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	key, ok := c.GetQuery("key")
	if !ok {
		query := grid.Query{}
		for name, values := range c.Request.URL.Query() {
			if len(values) > 0 {
				query[name] = values[0]
			}
		}
		if len(query) == 0 {
			query = screen.DefaultQuery
		}
		key = grid.QueryKey(query)
	}

	record, err := h.store.Get(c.Request.Context(), screen.Name, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}
