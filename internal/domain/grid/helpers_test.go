package grid_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/infrastructure/surface"
)

// MockPersistence is a mock implementation of grid.Persistence
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Load(ctx context.Context, target grid.Target, query grid.Query) (grid.LoadResult, error) {
	args := m.Called(ctx, target, query)
	return args.Get(0).(grid.LoadResult), args.Error(1)
}

func (m *MockPersistence) Save(ctx context.Context, master, detail []*grid.Row) (grid.SaveResult, error) {
	args := m.Called(ctx, master, detail)
	return args.Get(0).(grid.SaveResult), args.Error(1)
}

type recordingNotifier struct {
	notes []grid.Notification
}

func (n *recordingNotifier) Notify(note grid.Notification) {
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) count(level grid.Level) int {
	c := 0
	for _, note := range n.notes {
		if note.Level == level {
			c++
		}
	}
	return c
}

type pendingConfirm struct {
	title, message    string
	onConfirm, cancel func()
}

type queuedConfirmer struct {
	pending []pendingConfirm
}

func (c *queuedConfirmer) Confirm(title, message string, onConfirm, onCancel func()) {
	c.pending = append(c.pending, pendingConfirm{title: title, message: message, onConfirm: onConfirm, cancel: onCancel})
}

// deferredScheduler holds tasks until flushed so tests control completion order
type deferredScheduler struct {
	tasks []func(ctx context.Context) func()
}

func (s *deferredScheduler) Run(task func(ctx context.Context) func()) {
	s.tasks = append(s.tasks, task)
}

// runAt runs the i-th queued task and its continuation
func (s *deferredScheduler) runAt(i int) {
	task := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	if next := task(context.Background()); next != nil {
		next()
	}
}

func (s *deferredScheduler) flush() {
	for len(s.tasks) > 0 {
		s.runAt(0)
	}
}

func itemSchema() *grid.Schema {
	return grid.NewSchema("items", []string{"code"},
		grid.Field{Name: "code", Kind: grid.KindString, Tracked: true, Required: true},
		grid.Field{Name: "name", Kind: grid.KindString, Tracked: true, Required: true},
		grid.Field{Name: "qty", Kind: grid.KindInt, Tracked: true, Rules: "min=0"},
		grid.Field{Name: "price", Kind: grid.KindDecimal, Tracked: true},
		grid.Field{Name: "state", Kind: grid.KindString, Tracked: true, Rules: "oneof=on off"},
		grid.Field{Name: "note", Kind: grid.KindString},
		grid.Field{Name: "locked", Kind: grid.KindBool, ReadOnly: true},
	)
}

func partSchema() *grid.Schema {
	return grid.NewSchema("parts", []string{"code", "part"},
		grid.Field{Name: "code", Kind: grid.KindString, Tracked: true, Required: true, ReadOnly: true},
		grid.Field{Name: "part", Kind: grid.KindString, Tracked: true, Required: true},
		grid.Field{Name: "state", Kind: grid.KindString, Tracked: true},
		grid.Field{Name: "editor", Kind: grid.KindString},
	)
}

type fixture struct {
	editor     *grid.Editor
	master     *surface.MemorySurface
	detail     *surface.MemorySurface
	persist    *MockPersistence
	notifier   *recordingNotifier
	confirmer  *queuedConfirmer
	engine     *grid.Engine
	committed  []*grid.CommitBatch
	staleLoads []grid.Target
}

func newFixture(scheduler grid.Scheduler) *fixture {
	f := &fixture{
		master:    surface.New("items"),
		detail:    surface.New("parts"),
		persist:   new(MockPersistence),
		notifier:  &recordingNotifier{},
		confirmer: &queuedConfirmer{},
		engine:    grid.NewEngine(),
	}
	editor, err := grid.NewEditor(grid.EditorConfig{
		MasterSchema:  itemSchema(),
		DetailSchema:  partSchema(),
		MasterSurface: f.master,
		DetailSurface: f.detail,
		Engine:        f.engine,
		Persistence:   f.persist,
		Confirmer:     f.confirmer,
		Notifier:      f.notifier,
		Scheduler:     scheduler,
		Link: grid.Link{
			Query: func(m *grid.Row) grid.Query {
				return grid.Query{"code": m.String("code")}
			},
			Defaults: func(m *grid.Row) grid.Values {
				return grid.Values{"code": m.String("code")}
			},
		},
		Hooks: grid.Hooks{
			OnCommitted: func(b *grid.CommitBatch) { f.committed = append(f.committed, b) },
			OnStaleLoad: func(t grid.Target, _ grid.Identity) { f.staleLoads = append(f.staleLoads, t) },
		},
	})
	if err != nil {
		panic(err)
	}
	f.editor = editor
	return f
}

func itemRows() []grid.Values {
	return []grid.Values{
		{"code": "A", "name": "Alpha", "qty": 1, "price": "1.50", "state": "on", "note": ""},
		{"code": "B", "name": "Beta", "qty": 2, "price": "2.00", "state": "on", "note": ""},
		{"code": "C", "name": "Gamma", "qty": 3, "price": "3.25", "state": "off", "note": ""},
	}
}

func partRows(code string) []grid.Values {
	return []grid.Values{
		{"code": code, "part": "p1", "state": "on", "editor": "x"},
		{"code": code, "part": "p2", "state": "on", "editor": "x"},
	}
}

// loaded returns a fixture with the item rows loaded on an immediate scheduler
func loaded() *fixture {
	f := newFixture(grid.ImmediateScheduler{})
	f.persist.On("Load", mock.Anything, grid.TargetMaster, mock.Anything).
		Return(grid.LoadResult{Success: true, Rows: itemRows()}, nil)
	for _, code := range []string{"A", "B", "C"} {
		f.persist.On("Load", mock.Anything, grid.TargetDetail, grid.Query{"code": code}).
			Return(grid.LoadResult{Success: true, Rows: partRows(code)}, nil)
	}
	f.editor.Load(grid.Query{})
	return f
}

func row(s *surface.MemorySurface, id string) *grid.Row {
	r, ok := s.Row(grid.Identity(id))
	if !ok {
		panic("row not found: " + id)
	}
	return r
}
