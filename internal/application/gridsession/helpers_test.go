package gridsession_test

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// backend is an in-memory grid.Persistence holding items and their parts
type backend struct {
	mu        sync.Mutex
	items     map[string]grid.Values
	parts     map[string]map[string]grid.Values
	saves     int
	failSave  string
	saveGate  chan struct{}
	lastActor string
}

func newBackend() *backend {
	b := &backend{
		items: map[string]grid.Values{},
		parts: map[string]map[string]grid.Values{},
	}
	for _, code := range []string{"A", "B"} {
		b.items[code] = grid.Values{"code": code, "state": "on", "qty": int64(1)}
		b.parts[code] = map[string]grid.Values{}
		for _, part := range []string{"p1", "p2"} {
			b.parts[code][part] = grid.Values{"code": code, "part": part, "state": "on"}
		}
	}
	return b
}

func (b *backend) forActor(actor string) grid.Persistence {
	b.mu.Lock()
	b.lastActor = actor
	b.mu.Unlock()
	return b
}

func (b *backend) Load(_ context.Context, target grid.Target, query grid.Query) (grid.LoadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rows []grid.Values
	if target == grid.TargetMaster {
		for _, v := range b.items {
			rows = append(rows, v.Clone())
		}
	} else {
		for _, v := range b.parts[query["code"]] {
			rows = append(rows, v.Clone())
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["code"].(string)+stringOr(rows[i]["part"]) < rows[j]["code"].(string)+stringOr(rows[j]["part"])
	})
	return grid.LoadResult{Success: true, Rows: rows}, nil
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

func (b *backend) Save(ctx context.Context, master, detail []*grid.Row) (grid.SaveResult, error) {
	if b.saveGate != nil {
		select {
		case <-b.saveGate:
		case <-ctx.Done():
			return grid.SaveResult{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.failSave != "" {
		return grid.SaveResult{Success: false, Message: b.failSave}, nil
	}
	for _, r := range master {
		code := r.String("code")
		if r.Lifecycle == grid.LifecycleDeleted {
			delete(b.items, code)
			continue
		}
		b.items[code] = r.Values.Clone()
	}
	for _, r := range detail {
		code, part := r.String("code"), r.String("part")
		if r.Lifecycle == grid.LifecycleDeleted {
			delete(b.parts[code], part)
			continue
		}
		if b.parts[code] == nil {
			b.parts[code] = map[string]grid.Values{}
		}
		b.parts[code][part] = r.Values.Clone()
	}
	return grid.SaveResult{Success: true}, nil
}

func (b *backend) item(code string) grid.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[code].Clone()
}

func testScreen(b *backend) gridsession.Screen {
	return gridsession.Screen{
		Name:  "items",
		Title: "Items",
		MasterSchema: grid.NewSchema("items", []string{"code"},
			grid.Field{Name: "code", Kind: grid.KindString, Tracked: true, Required: true},
			grid.Field{Name: "state", Kind: grid.KindString, Tracked: true, Rules: "oneof=on off"},
			grid.Field{Name: "qty", Kind: grid.KindInt, Tracked: true, Rules: "min=0"},
		),
		DetailSchema: grid.NewSchema("parts", []string{"code", "part"},
			grid.Field{Name: "code", Kind: grid.KindString, Tracked: true, ReadOnly: true},
			grid.Field{Name: "part", Kind: grid.KindString, Tracked: true, Required: true},
			grid.Field{Name: "state", Kind: grid.KindString, Tracked: true, Rules: "oneof=on off"},
		),
		NewEngine: testEngine,
		Link: grid.Link{
			Query:    func(m *grid.Row) grid.Query { return grid.Query{"code": m.String("code")} },
			Defaults: func(m *grid.Row) grid.Values { return grid.Values{"code": m.String("code")} },
		},
		NewPersistence: b.forActor,
	}
}

func testEngine() *grid.Engine {
	e := grid.NewEngine()
	e.Register("state",
		grid.Guard{
			Name: "confirm-on",
			When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool { return req.Proposed == "on" },
			Then: func(req grid.TransitionRequest, tc grid.TransitionContext) grid.Decision {
				d := grid.Confirm("Reactivate", "Reactivate "+req.Row.ID.String()+"?")
				if tc.DependentLoadedFor(req.Row.ID) {
					d = d.WithCascade(grid.NewCascade(grid.Values{"state": "on"}))
				}
				return d
			},
		},
		grid.Guard{
			Name: "cascade-off",
			When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool { return req.Proposed == "off" },
			Then: func(req grid.TransitionRequest, tc grid.TransitionContext) grid.Decision {
				if !tc.DependentLoadedFor(req.Row.ID) {
					return grid.Accept()
				}
				return grid.Accept().WithCascade(grid.NewCascade(grid.Values{"state": "off"}))
			},
		},
	)
	return e
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// recordingMetrics counts metric calls
type recordingMetrics struct {
	mu       sync.Mutex
	opened   int
	closed   int
	commits  int
	failures int
	rejected []string
	stale    int
}

func (m *recordingMetrics) SessionOpened(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
}

func (m *recordingMetrics) SessionClosed(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *recordingMetrics) CommitFinished(_ context.Context, _ string, _ int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures++
		return
	}
	m.commits++
}

func (m *recordingMetrics) TransitionRejected(_ context.Context, _ string, _ string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
}

func (m *recordingMetrics) StaleLoadDiscarded(context.Context, string, grid.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}

func rowOf(rows []gridsession.RowView, id grid.Identity) (gridsession.RowView, bool) {
	for _, r := range rows {
		if r.ID == id {
			return r, true
		}
	}
	return gridsession.RowView{}, false
}
