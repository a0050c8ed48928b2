package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appclosing "github.com/erp/gridsync/internal/application/closing"
	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/infrastructure/cache"
	"github.com/erp/gridsync/internal/infrastructure/config"
	"github.com/erp/gridsync/internal/infrastructure/event"
	"github.com/erp/gridsync/internal/infrastructure/logger"
	"github.com/erp/gridsync/internal/infrastructure/persistence"
	"github.com/erp/gridsync/internal/infrastructure/persistence/models"
	"github.com/erp/gridsync/internal/interfaces/http/dto"
	"github.com/erp/gridsync/internal/interfaces/http/handler"
	"github.com/erp/gridsync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	var seen []string
	r := NewRouter(engine).
		Use(func(c *gin.Context) {
			seen = append(seen, "api")
			c.Next()
		}).
		Register(NewDomainGroup("ping", "/ping").GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		}))
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, []string{"api"}, seen)
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()
	var order []string
	track := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Status(http.StatusNoContent)
		}
	}

	group := NewDomainGroup("rows", "/rows").
		Use(func(c *gin.Context) {
			order = append(order, "group")
			c.Next()
		}).
		GET("", track("get")).
		POST("", track("post")).
		PUT("/:id", track("put")).
		DELETE("/:id", track("delete"))
	group.Group("cells", "/:id/cells").GET("", track("cells"))

	assert.Equal(t, "rows", group.Name())
	assert.Equal(t, "/rows", group.Prefix())

	group.RegisterRoutes(engine.Group("/api"))

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/rows", "get"},
		{http.MethodPost, "/api/rows", "post"},
		{http.MethodPut, "/api/rows/1", "put"},
		{http.MethodDelete, "/api/rows/1", "delete"},
		{http.MethodGet, "/api/rows/1/cells", "cells"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			order = nil
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, []string{"group", tt.want}, order)
		})
	}
}

// apiFixture serves the full session API over a migrated sqlite database
type apiFixture struct {
	engine *gin.Engine
	db     *persistence.Database
	store  *cache.InMemoryCommittedStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.Create(&models.ClosingPeriodModel{
		Period: "202411", Status: "Open", CloseTag: "N", ProfitLossClosing: "N",
	}).Error)
	for _, module := range []string{"AP", "GL"} {
		require.NoError(t, db.DB.Create(&models.ClosingModuleTagModel{
			Period: "202411", Module: module, ModuleName: module + " ledger", Status: "Open", CloseTag: "N",
		}).Error)
	}

	store := cache.NewInMemoryCommittedStore(0)
	t.Cleanup(func() { _ = store.Close() })

	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(gridsession.NewCommittedStoreHandler(store, zap.NewNop()))

	registry := gridsession.NewRegistry(appclosing.NewScreen(persistence.NewGormClosingRepository(db.DB), zap.NewNop()))
	manager := gridsession.NewManager(registry, gridsession.ManagerConfig{CallTimeout: 5 * time.Second}, zap.NewNop(),
		gridsession.WithPublisher(bus))
	t.Cleanup(func() { _ = manager.Stop(context.Background()) })

	engine := gin.New()
	middleware.SetupValidator()
	engine.Use(middleware.RequestID())
	r := NewRouter(engine)
	r.Register(SessionRoutes(handler.NewSessionHandler(manager)))
	r.Register(ScreenRoutes(handler.NewScreenHandler(registry, store)))
	r.Setup()

	return &apiFixture{engine: engine, db: db, store: store}
}

// call sends body as JSON and decodes the envelope; data is decoded into out
// when out is non-nil
func (f *apiFixture) call(t *testing.T, method, path string, body any, out any) (int, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(logger.ActorHeader, "kim")

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code == http.StatusNoContent {
		return w.Code, dto.Response{}
	}
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return w.Code, envelope.Response
}

func rowByID(rows []gridsession.RowView, id string) (gridsession.RowView, bool) {
	for _, r := range rows {
		if r.ID == grid.Identity(id) {
			return r, true
		}
	}
	return gridsession.RowView{}, false
}

func TestSessionAPI_CloseAPeriod(t *testing.T) {
	f := newAPIFixture(t)

	// Create
	var view gridsession.View
	code, resp := f.call(t, http.MethodPost, "/sessions", dto.CreateSessionRequest{
		Screen: appclosing.ScreenName,
		Query:  map[string]string{"year": "2024"},
	}, &view)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	require.Len(t, view.Master.Rows, 1)
	base := "/sessions/" + view.SessionID.String()

	// Select the period; its module tags load
	code, _ = f.call(t, http.MethodPost, base+"/selection", dto.SelectRequest{Row: "202411"}, &view)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, grid.Identity("202411"), view.Selected)
	require.Len(t, view.Detail.Rows, 2)

	// Close it; the module tags follow
	code, _ = f.call(t, http.MethodPut, base+"/cells", dto.SetCellRequest{
		CellRequest: dto.CellRequest{Grid: "master", Row: "202411", Field: "status"},
		Value:       "Close",
	}, &view)
	require.Equal(t, http.StatusOK, code)
	period, ok := rowByID(view.Master.Rows, "202411")
	require.True(t, ok)
	assert.Equal(t, "Y", period.Values["closeTag"])
	assert.Equal(t, 1, view.Master.Dirty[grid.LifecycleUpdated])
	assert.Equal(t, 2, view.Detail.Dirty[grid.LifecycleUpdated])

	// Commit
	code, resp = f.call(t, http.MethodPost, base+"/commit", nil, &view)
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Empty(t, view.Master.Dirty)
	assert.Empty(t, view.Detail.Dirty)

	var stored models.ClosingPeriodModel
	require.NoError(t, f.db.DB.First(&stored, "period = ?", "202411").Error)
	assert.Equal(t, "Close", stored.Status)
	assert.Equal(t, "kim", stored.ClosedBy)
	var openTags int64
	require.NoError(t, f.db.DB.Model(&models.ClosingModuleTagModel{}).
		Where("period = ? AND status = ?", "202411", "Open").Count(&openTags).Error)
	assert.Zero(t, openTags)

	// The committed rows become readable once the event is handled
	require.Eventually(t, func() bool {
		_, err := f.store.Get(context.Background(), appclosing.ScreenName, grid.QueryKey(grid.Query{"year": "2024"}))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	var record grid.CommittedRecord
	code, _ = f.call(t, http.MethodGet, "/screens/closing/committed?year=2024", nil, &record)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "kim", record.Actor)
	require.Len(t, record.Master, 1)
	assert.Equal(t, grid.Identity("202411"), record.Master[0].ID)
	assert.Len(t, record.Detail, 2)

	// A second commit has nothing to save
	code, resp = f.call(t, http.MethodPost, base+"/commit", nil, &view)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, dto.ErrCodeNoChanges, resp.Error.Code)
	assert.Equal(t, view.Screen, appclosing.ScreenName)

	// Close the session
	code, _ = f.call(t, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, resp = f.call(t, http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestSessionAPI_Errors(t *testing.T) {
	f := newAPIFixture(t)

	var view gridsession.View
	code, _ := f.call(t, http.MethodPost, "/sessions", dto.CreateSessionRequest{Screen: appclosing.ScreenName}, &view)
	require.Equal(t, http.StatusCreated, code)
	base := "/sessions/" + view.SessionID.String()

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown screen",
			method:   http.MethodPost,
			path:     "/sessions",
			body:     dto.CreateSessionRequest{Screen: "payroll"},
			wantCode: http.StatusNotFound,
			wantErr:  dto.ErrCodeNotFound,
		},
		{
			name:     "missing screen",
			method:   http.MethodPost,
			path:     "/sessions",
			body:     map[string]any{},
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeValidation,
		},
		{
			name:     "malformed session id",
			method:   http.MethodGet,
			path:     "/sessions/not-a-uuid",
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeBadRequest,
		},
		{
			name:     "unknown session",
			method:   http.MethodPost,
			path:     "/sessions/7d0c4b1e-9d7a-4a57-8a5e-6f1f1c2f0a11/reload",
			wantCode: http.StatusNotFound,
			wantErr:  dto.ErrCodeNotFound,
		},
		{
			name:     "grid must be master or detail",
			method:   http.MethodPut,
			path:     base + "/cells",
			body:     map[string]any{"grid": "side", "row": "202411", "field": "status", "value": "Close"},
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeValidation,
		},
		{
			name:     "confirmation answer is required",
			method:   http.MethodPost,
			path:     base + "/confirmations/7d0c4b1e-9d7a-4a57-8a5e-6f1f1c2f0a11",
			body:     map[string]any{},
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeValidation,
		},
		{
			name:     "unknown confirmation",
			method:   http.MethodPost,
			path:     base + "/confirmations/7d0c4b1e-9d7a-4a57-8a5e-6f1f1c2f0a11",
			body:     map[string]any{"confirm": true},
			wantCode: http.StatusNotFound,
			wantErr:  dto.ErrCodeNotFound,
		},
		{
			name:     "nothing to commit",
			method:   http.MethodPost,
			path:     base + "/commit",
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  dto.ErrCodeNoChanges,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := f.call(t, tt.method, tt.path, tt.body, nil)

			assert.Equal(t, tt.wantCode, code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestSessionAPI_DeleteAndUndeleteRow(t *testing.T) {
	f := newAPIFixture(t)

	var view gridsession.View
	code, _ := f.call(t, http.MethodPost, "/sessions", dto.CreateSessionRequest{
		Screen: appclosing.ScreenName,
		Query:  map[string]string{"year": "2024"},
	}, &view)
	require.Equal(t, http.StatusCreated, code)
	base := "/sessions/" + view.SessionID.String()

	code, _ = f.call(t, http.MethodDelete, base+"/rows/master/202411", nil, &view)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, view.Master.Dirty[grid.LifecycleDeleted])

	code, _ = f.call(t, http.MethodPost, base+"/rows/master/202411/undelete", nil, &view)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, view.Master.Dirty)

	code, resp := f.call(t, http.MethodDelete, base+"/rows/side/202411", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}
