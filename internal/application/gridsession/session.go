package gridsession

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
	"github.com/erp/gridsync/internal/infrastructure/surface"
)

var (
	// ErrUnknownGrid is returned when a call names neither grid
	ErrUnknownGrid = shared.NewDomainError("INVALID_INPUT", "Unknown grid, expected master or detail")
	// ErrConfirmationNotFound is returned for an unknown or already answered confirmation
	ErrConfirmationNotFound = shared.NewDomainError("NOT_FOUND", "Confirmation not found")
)

// Confirmation is a question waiting for the user
type Confirmation struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`

	onConfirm func()
	onCancel  func()
}

// RowView is a row as shown to the client
type RowView struct {
	ID        grid.Identity  `json:"id"`
	Lifecycle grid.Lifecycle `json:"lifecycle"`
	Values    grid.Values    `json:"values"`
}

// GridView is the client state of one grid
type GridView struct {
	Name      string                 `json:"name"`
	Rows      []RowView              `json:"rows"`
	Dirty     map[grid.Lifecycle]int `json:"dirty"`
	LoadedFor grid.Identity          `json:"loaded_for,omitempty"`
	Refreshes []surface.Refresh      `json:"refreshes,omitempty"`
}

// CellView names the cell being edited
type CellView struct {
	Grid  grid.Target   `json:"grid"`
	Row   grid.Identity `json:"row"`
	Field string        `json:"field"`
}

// View is the state returned by every session call. Notifications and
// refreshes are drained, so each appears in exactly one view.
type View struct {
	SessionID     uuid.UUID           `json:"session_id"`
	Screen        string              `json:"screen"`
	Query         grid.Query          `json:"query"`
	Selected      grid.Identity       `json:"selected,omitempty"`
	Editing       *CellView           `json:"editing,omitempty"`
	Loading       bool                `json:"loading"`
	Committing    bool                `json:"committing"`
	Master        GridView            `json:"master"`
	Detail        GridView            `json:"detail"`
	Notifications []grid.Notification `json:"notifications"`
	Confirmations []Confirmation      `json:"confirmations"`
}

// SessionConfig wires a Session
type SessionConfig struct {
	Screen      Screen
	Actor       string
	Logger      *zap.Logger
	Publisher   shared.EventPublisher
	Metrics     Metrics
	CallTimeout time.Duration
	Clock       func() time.Time
}

// Session is one user's editing session on a screen. Every call is
// serialized on the session loop.
type Session struct {
	ID        uuid.UUID
	Screen    string
	Actor     string
	CreatedAt time.Time

	lastActive atomic.Int64
	loop       *Loop
	editor     *grid.Editor
	master     *surface.MemorySurface
	detail     *surface.MemorySurface
	publisher  shared.EventPublisher
	metrics    Metrics
	logger     *zap.Logger
	clock      func() time.Time

	// loop-owned
	notes         []grid.Notification
	confirmations []*Confirmation
}

// NewSession creates a session and its editor. Nothing is loaded until Load.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Screen.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	id := uuid.New()
	s := &Session{
		ID:        id,
		Screen:    cfg.Screen.Name,
		Actor:     cfg.Actor,
		CreatedAt: cfg.Clock(),
		master:    surface.New(cfg.Screen.MasterSchema.Name),
		detail:    surface.New(cfg.Screen.DetailSchema.Name),
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		logger: cfg.Logger.With(
			zap.String("session_id", id.String()),
			zap.String("screen", cfg.Screen.Name),
		),
	}
	s.loop = NewLoop(s.logger, cfg.CallTimeout)
	s.touch()

	var engine *grid.Engine
	if cfg.Screen.NewEngine != nil {
		engine = cfg.Screen.NewEngine()
	}
	editor, err := grid.NewEditor(grid.EditorConfig{
		MasterSchema:  cfg.Screen.MasterSchema,
		DetailSchema:  cfg.Screen.DetailSchema,
		MasterSurface: s.master,
		DetailSurface: s.detail,
		Engine:        engine,
		Persistence:   cfg.Screen.NewPersistence(cfg.Actor),
		Confirmer:     s,
		Notifier:      s,
		Scheduler:     s.loop,
		Link:          cfg.Screen.Link,
		Hooks: grid.Hooks{
			OnLoaded:       s.loaded,
			OnStaleLoad:    s.staleLoad,
			OnRejected:     s.rejected,
			OnCommitted:    s.committed,
			OnCommitFailed: s.commitFailed,

			OnConfirmationsDropped: s.confirmationsDropped,
		},
	})
	if err != nil {
		s.loop.Close()
		return nil, err
	}
	s.editor = editor
	return s, nil
}

// LastActive returns the time of the last call
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(s.clock().UnixNano())
}

// Closed reports whether the session was closed
func (s *Session) Closed() bool {
	return s.loop.Closed()
}

// Close stops the session loop
func (s *Session) Close() {
	s.loop.Close()
}

// Notify implements grid.Notifier
func (s *Session) Notify(n grid.Notification) {
	s.notes = append(s.notes, n)
	fields := []zap.Field{zap.String("code", n.Code), zap.String("message", n.Message)}
	switch n.Level {
	case grid.LevelError:
		s.logger.Warn("grid notification", fields...)
	default:
		s.logger.Debug("grid notification", append(fields, zap.String("level", string(n.Level)))...)
	}
}

// Confirm implements grid.Confirmer. The question stays pending until
// ResolveConfirmation answers it.
func (s *Session) Confirm(title, message string, onConfirm, onCancel func()) {
	s.confirmations = append(s.confirmations, &Confirmation{
		ID:        uuid.New(),
		Title:     title,
		Message:   message,
		onConfirm: onConfirm,
		onCancel:  onCancel,
	})
}

func (s *Session) confirmationsDropped(n int) {
	s.logger.Debug("pending confirmations dropped by reload", zap.Int("count", n))
	s.confirmations = nil
}

func (s *Session) loaded(target grid.Target, rows int) {
	s.logger.Debug("grid loaded", zap.String("target", string(target)), zap.Int("rows", rows))
}

func (s *Session) staleLoad(target grid.Target, requested grid.Identity) {
	s.logger.Debug("stale load discarded",
		zap.String("target", string(target)),
		zap.String("requested", requested.String()),
	)
	s.metrics.StaleLoadDiscarded(context.Background(), s.Screen, target)
}

func (s *Session) rejected(field, reason string) {
	s.metrics.TransitionRejected(context.Background(), s.Screen, field, reason)
}

func (s *Session) committed(batch *grid.CommitBatch) {
	s.logger.Info("grid committed", zap.Int("rows", batch.Size()))
	s.metrics.CommitFinished(context.Background(), s.Screen, batch.Size(), nil)
	if s.publisher == nil {
		return
	}
	record := grid.NewCommittedRecord(s.Screen, grid.QueryKey(s.editor.Query()), s.Actor, s.clock(), batch)
	event := NewGridCommittedEvent(s.ID, record)
	s.loop.Run(func(ctx context.Context) func() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish committed event", zap.Error(err))
		}
		return nil
	})
}

func (s *Session) commitFailed(err error) {
	s.logger.Warn("grid commit failed", zap.Error(err))
	s.metrics.CommitFinished(context.Background(), s.Screen, 0, err)
}

// exec runs fn on the loop and returns the resulting view. When fn succeeds
// and settle is set, exec first waits for the background work fn started.
func (s *Session) exec(ctx context.Context, settle bool, fn func() error) (View, error) {
	s.touch()
	err := s.loop.Do(ctx, fn)
	if errors.Is(err, ErrSessionClosed) {
		return View{}, err
	}
	if settle && err == nil {
		err = s.loop.Settle(ctx)
	}
	var view View
	if verr := s.loop.Do(context.WithoutCancel(ctx), func() error {
		view = s.view()
		return nil
	}); verr != nil {
		return View{}, verr
	}
	return view, err
}

func (s *Session) surfaceFor(target grid.Target) (*surface.MemorySurface, error) {
	switch target {
	case grid.TargetMaster:
		return s.master, nil
	case grid.TargetDetail:
		return s.detail, nil
	}
	return nil, ErrUnknownGrid
}

// Load replaces the master rows with the result of query
func (s *Session) Load(ctx context.Context, query grid.Query) (View, error) {
	return s.exec(ctx, true, func() error {
		s.editor.Load(query)
		return nil
	})
}

// Reload repeats the last master query
func (s *Session) Reload(ctx context.Context) (View, error) {
	return s.exec(ctx, true, func() error {
		s.editor.Reload()
		return nil
	})
}

// View returns the current state without waiting for background work
func (s *Session) View(ctx context.Context) (View, error) {
	return s.exec(ctx, false, func() error { return nil })
}

// StartEdit opens the cell editor on a cell
func (s *Session) StartEdit(ctx context.Context, target grid.Target, id grid.Identity, field string) (View, error) {
	return s.exec(ctx, true, func() error {
		sf, err := s.surfaceFor(target)
		if err != nil {
			return err
		}
		return sf.BeginEdit(id, field)
	})
}

// StopEdit closes the cell editor of target
func (s *Session) StopEdit(ctx context.Context, target grid.Target) (View, error) {
	return s.exec(ctx, true, func() error {
		sf, err := s.surfaceFor(target)
		if err != nil {
			return err
		}
		sf.EndEdit()
		return nil
	})
}

// SetCell normalizes raw and writes it into a cell as the user would
func (s *Session) SetCell(ctx context.Context, target grid.Target, id grid.Identity, field string, raw any) (View, error) {
	return s.exec(ctx, true, func() error {
		sf, err := s.surfaceFor(target)
		if err != nil {
			return err
		}
		value, err := s.editor.Normalize(target, id, field, raw)
		if err != nil {
			return err
		}
		return sf.Edit(id, field, value)
	})
}

// Select moves the master selection. An empty id clears it.
func (s *Session) Select(ctx context.Context, id grid.Identity) (View, error) {
	return s.exec(ctx, true, func() error {
		if id != "" {
			if _, ok := s.master.Row(id); !ok {
				return grid.ErrRowNotFound
			}
		}
		s.master.Select(id)
		return nil
	})
}

// CreateRow inserts a new row into target
func (s *Session) CreateRow(ctx context.Context, target grid.Target, values grid.Values) (View, error) {
	return s.exec(ctx, true, func() error {
		if _, err := s.surfaceFor(target); err != nil {
			return err
		}
		_, err := s.editor.CreateRow(target, values)
		return err
	})
}

// DeleteRow marks a row deleted
func (s *Session) DeleteRow(ctx context.Context, target grid.Target, id grid.Identity) (View, error) {
	return s.exec(ctx, true, func() error {
		if _, err := s.surfaceFor(target); err != nil {
			return err
		}
		return s.editor.DeleteRow(target, id)
	})
}

// UndeleteRow clears a deleted mark
func (s *Session) UndeleteRow(ctx context.Context, target grid.Target, id grid.Identity) (View, error) {
	return s.exec(ctx, true, func() error {
		if _, err := s.surfaceFor(target); err != nil {
			return err
		}
		return s.editor.UndeleteRow(target, id)
	})
}

// ResolveConfirmation answers a pending confirmation
func (s *Session) ResolveConfirmation(ctx context.Context, id uuid.UUID, confirm bool) (View, error) {
	return s.exec(ctx, true, func() error {
		for i, c := range s.confirmations {
			if c.ID != id {
				continue
			}
			s.confirmations = append(s.confirmations[:i], s.confirmations[i+1:]...)
			if confirm {
				c.onConfirm()
			} else {
				c.onCancel()
			}
			return nil
		}
		return ErrConfirmationNotFound
	})
}

// Commit saves every dirty row and waits for the save and the re-query. A
// backend failure is returned as ErrPersistenceFailed with the edits kept.
func (s *Session) Commit(ctx context.Context) (View, error) {
	view, err := s.exec(ctx, true, s.editor.Commit)
	if err != nil {
		return view, err
	}
	var commitErr error
	if derr := s.loop.Do(ctx, func() error {
		commitErr = s.editor.LastCommitError()
		return nil
	}); derr != nil {
		return view, derr
	}
	return view, commitErr
}

// view builds the client state. It runs on the loop.
func (s *Session) view() View {
	v := View{
		SessionID:     s.ID,
		Screen:        s.Screen,
		Query:         s.editor.Query(),
		Selected:      s.editor.Guard().Current(),
		Loading:       s.editor.Loading(),
		Committing:    s.editor.Pipeline().InFlight(),
		Master:        s.gridView(grid.TargetMaster, s.master),
		Detail:        s.gridView(grid.TargetDetail, s.detail),
		Notifications: s.notes,
		Confirmations: make([]Confirmation, 0, len(s.confirmations)),
	}
	s.notes = nil
	if loadedFor, ok := s.editor.Dependent().LoadedFor(); ok {
		v.Detail.LoadedFor = loadedFor
	}
	if cell, ok := s.master.Editing(); ok {
		v.Editing = &CellView{Grid: grid.TargetMaster, Row: cell.Row, Field: cell.Field}
	} else if cell, ok := s.detail.Editing(); ok {
		v.Editing = &CellView{Grid: grid.TargetDetail, Row: cell.Row, Field: cell.Field}
	}
	for _, c := range s.confirmations {
		v.Confirmations = append(v.Confirmations, *c)
	}
	if v.Notifications == nil {
		v.Notifications = []grid.Notification{}
	}
	return v
}

func (s *Session) gridView(target grid.Target, sf *surface.MemorySurface) GridView {
	rows := sf.Snapshot()
	gv := GridView{
		Name:      sf.Name(),
		Rows:      make([]RowView, 0, len(rows)),
		Dirty:     s.editor.DirtyCounts(target),
		Refreshes: sf.DrainRefreshes(),
	}
	for _, r := range rows {
		gv.Rows = append(gv.Rows, RowView{ID: r.ID, Lifecycle: r.Lifecycle, Values: r.Values})
	}
	return gv
}
