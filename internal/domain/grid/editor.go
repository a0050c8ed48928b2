package grid

import (
	"context"
	"errors"
	"fmt"
)

// Link ties detail rows to their master row
type Link struct {
	// Query builds the detail load query for a master row
	Query func(master *Row) Query
	// Defaults returns values copied into detail rows created under master
	Defaults func(master *Row) Values
}

// Hooks are optional callbacks for observability. They run on the event loop.
type Hooks struct {
	OnLoaded       func(target Target, rows int)
	OnStaleLoad    func(target Target, requested Identity)
	OnRejected     func(field, reason string)
	OnCommitted    func(batch *CommitBatch)
	OnCommitFailed func(err error)
	// OnConfirmationsDropped reports confirmations cancelled by a master reload
	OnConfirmationsDropped func(n int)
}

// EditorConfig wires an Editor
type EditorConfig struct {
	MasterSchema  *Schema
	DetailSchema  *Schema
	MasterSurface Surface
	DetailSurface Surface
	Engine        *Engine
	Persistence   Persistence
	Confirmer     Confirmer
	Notifier      Notifier
	Scheduler     Scheduler
	Link          Link
	Hooks         Hooks
}

// Editor connects a master and a detail surface to the ledgers, the
// validation engine, the selection guard and the commit pipeline. It reacts
// to surface events and must only be used from one goroutine.
type Editor struct {
	masterSchema *Schema
	detailSchema *Schema
	master       Surface
	masterLedger *Ledger
	dependent    *DependentCollection
	engine       *Engine
	guard        *SelectionGuard
	pipeline     *CommitPipeline
	persistence  Persistence
	confirmer    Confirmer
	notifier     Notifier
	scheduler    Scheduler
	link         Link
	hooks        Hooks

	query     Query
	masterGen uint64
	pending   int
	ordinal   int
	lastErr   error

	confirmSeq uint64
	awaiting   map[uint64]TransitionRequest
}

// NewEditor validates cfg and subscribes the editor to both surfaces
func NewEditor(cfg EditorConfig) (*Editor, error) {
	switch {
	case cfg.MasterSchema == nil || cfg.DetailSchema == nil:
		return nil, errors.New("grid: master and detail schemas are required")
	case cfg.MasterSurface == nil || cfg.DetailSurface == nil:
		return nil, errors.New("grid: master and detail surfaces are required")
	case cfg.Persistence == nil:
		return nil, errors.New("grid: persistence is required")
	case cfg.Confirmer == nil:
		return nil, errors.New("grid: confirmer is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = NewEngine()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFunc(func(Notification) {})
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = ImmediateScheduler{}
	}
	if cfg.Link.Query == nil {
		cfg.Link.Query = func(master *Row) Query {
			return Query{"master": master.ID.String()}
		}
	}

	masterLedger := NewLedger(cfg.MasterSchema, NewSnapshotStore())
	detailLedger := NewLedger(cfg.DetailSchema, NewSnapshotStore())
	dependent := NewDependentCollection(cfg.DetailSurface, detailLedger)

	e := &Editor{
		masterSchema: cfg.MasterSchema,
		detailSchema: cfg.DetailSchema,
		master:       cfg.MasterSurface,
		masterLedger: masterLedger,
		dependent:    dependent,
		engine:       cfg.Engine,
		guard:        NewSelectionGuard(cfg.MasterSurface, masterLedger, dependent, cfg.Notifier),
		pipeline:     NewCommitPipeline(cfg.MasterSurface, masterLedger, dependent, cfg.Notifier),
		persistence:  cfg.Persistence,
		confirmer:    cfg.Confirmer,
		notifier:     cfg.Notifier,
		scheduler:    cfg.Scheduler,
		link:         cfg.Link,
		hooks:        cfg.Hooks,
		query:        Query{},
		awaiting:     make(map[uint64]TransitionRequest),
	}
	e.pipeline.unresolved = e.PendingConfirmations
	cfg.MasterSurface.Subscribe(masterListener{e})
	cfg.DetailSurface.Subscribe(detailListener{e})
	return e, nil
}

// Master returns the master surface
func (e *Editor) Master() Surface { return e.master }

// Detail returns the detail surface
func (e *Editor) Detail() Surface { return e.dependent.Surface() }

// MasterLedger returns the master ledger
func (e *Editor) MasterLedger() *Ledger { return e.masterLedger }

// Dependent returns the dependent collection
func (e *Editor) Dependent() *DependentCollection { return e.dependent }

// Guard returns the selection guard
func (e *Editor) Guard() *SelectionGuard { return e.guard }

// Pipeline returns the commit pipeline
func (e *Editor) Pipeline() *CommitPipeline { return e.pipeline }

// Query returns the current master query
func (e *Editor) Query() Query { return e.query.Clone() }

// Loading reports whether a load is outstanding. It is advisory only.
func (e *Editor) Loading() bool { return e.pending > 0 }

// PendingConfirmations returns the number of transitions waiting for an answer
func (e *Editor) PendingConfirmations() int { return len(e.awaiting) }

// LastCommitError returns the error of the most recent commit, nil after a
// successful one
func (e *Editor) LastCommitError() error { return e.lastErr }

// Schema returns the schema of target
func (e *Editor) Schema(target Target) *Schema {
	if target == TargetDetail {
		return e.detailSchema
	}
	return e.masterSchema
}

func (e *Editor) side(target Target) (Surface, *Ledger) {
	if target == TargetDetail {
		return e.dependent.Surface(), e.dependent.Ledger()
	}
	return e.master, e.masterLedger
}

// Load queries the master rows and discards every pending edit. A load
// superseded by a later one is dropped.
func (e *Editor) Load(query Query) {
	e.load(query, false)
}

// Reload re-runs the current master query
func (e *Editor) Reload() {
	e.Load(e.query)
}

// load queries the master rows. With keepDirty, rows still dirty on the
// surfaces are carried over the fresh rows instead of being discarded.
func (e *Editor) load(query Query, keepDirty bool) {
	e.query = query.Clone()
	e.masterGen++
	gen := e.masterGen
	q := e.query.Clone()
	e.pending++
	e.scheduler.Run(func(ctx context.Context) func() {
		res, err := e.persistence.Load(ctx, TargetMaster, q)
		return func() {
			e.pending--
			if gen != e.masterGen {
				e.stale(TargetMaster, "")
				return
			}
			if !e.loadSucceeded(res, err) {
				return
			}
			e.dropConfirmations()
			rows := e.buildRows(e.masterSchema, res.Rows)
			if keepDirty {
				rows = carryDirty(e.master, e.masterLedger, rows)
			} else {
				e.masterLedger.Snapshots().Load(rows)
			}
			e.master.Replace(rows)
			if e.hooks.OnLoaded != nil {
				e.hooks.OnLoaded(TargetMaster, len(rows))
			}

			if sel := e.guard.Current(); sel != "" {
				if _, ok := e.master.Row(sel); ok {
					e.loadDetail(sel, keepDirty)
					return
				}
			}
			e.guard.Reset()
			e.dependent.Reset()
		}
	})
}

func (e *Editor) loadDetail(master Identity, keepDirty bool) {
	row, ok := e.master.Row(master)
	if !ok {
		return
	}
	q := e.link.Query(row)
	e.pending++
	e.scheduler.Run(func(ctx context.Context) func() {
		res, err := e.persistence.Load(ctx, TargetDetail, q)
		return func() {
			e.pending--
			if e.guard.Current() != master {
				e.stale(TargetDetail, master)
				return
			}
			if !e.loadSucceeded(res, err) {
				return
			}
			rows := e.buildRows(e.detailSchema, res.Rows)
			if keepDirty && e.dependent.IsLoadedFor(master) {
				e.dependent.Merge(master, rows)
			} else {
				e.dependent.Load(master, rows)
			}
			if e.hooks.OnLoaded != nil {
				e.hooks.OnLoaded(TargetDetail, len(rows))
			}
		}
	})
}

func (e *Editor) stale(target Target, requested Identity) {
	if e.hooks.OnStaleLoad != nil {
		e.hooks.OnStaleLoad(target, requested)
	}
}

func (e *Editor) loadSucceeded(res LoadResult, err error) bool {
	if err == nil && res.Success {
		return true
	}
	msg := res.Message
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "Loading failed"
	}
	e.notifier.Notify(Notification{Level: LevelError, Message: msg})
	return false
}

func (e *Editor) buildRows(schema *Schema, values []Values) []*Row {
	rows := make([]*Row, 0, len(values))
	seen := make(map[Identity]bool, len(values))
	for _, v := range values {
		coerced := schema.Coerce(v)
		id := schema.IdentityOf(coerced, e.nextOrdinal())
		if seen[id] {
			id = positional(e.nextOrdinal())
		}
		seen[id] = true
		rows = append(rows, NewRow(id, coerced))
	}
	return rows
}

func (e *Editor) nextOrdinal() int {
	e.ordinal++
	return e.ordinal
}

// Normalize checks that field of row id may be edited and converts raw into
// the field's kind. Invalid input never reaches the surface.
func (e *Editor) Normalize(target Target, id Identity, field string, raw any) (any, error) {
	s, _ := e.side(target)
	row, ok := s.Row(id)
	if !ok {
		return nil, ErrRowNotFound
	}
	if err := e.checkEditable(e.Schema(target), row, field); err != nil {
		return nil, err
	}
	return e.Schema(target).Normalize(field, raw)
}

func (e *Editor) checkEditable(schema *Schema, row *Row, field string) error {
	f, ok := schema.Field(field)
	if !ok {
		return rejected(fmt.Sprintf("unknown field %q", field))
	}
	if f.ReadOnly {
		return rejected(fmt.Sprintf("field %q is read-only", field))
	}
	if schema.IsKey(field) && row.Lifecycle != LifecycleCreated {
		return rejected(fmt.Sprintf("key field %q of a saved row cannot change", field))
	}
	if row.Lifecycle == LifecycleDeleted {
		return rejected("row is marked for deletion")
	}
	return nil
}

// CreateRow inserts a new row tagged created. Detail rows require a loaded
// master and receive the link defaults.
func (e *Editor) CreateRow(target Target, values Values) (*Row, error) {
	s, _ := e.side(target)
	schema := e.Schema(target)

	merged := Values{}
	if target == TargetDetail {
		master, ok := e.dependent.LoadedFor()
		if !ok {
			return nil, ErrNoMasterSelected
		}
		masterRow, ok := e.master.Row(master)
		if !ok {
			return nil, ErrNoMasterSelected
		}
		if e.link.Defaults != nil {
			for k, v := range e.link.Defaults(masterRow) {
				merged[k] = v
			}
		}
	}
	for k, v := range values {
		merged[k] = v
	}

	normalized, err := schema.NormalizeValues(merged)
	if err != nil {
		return nil, err
	}
	id := schema.IdentityOf(normalized, e.nextOrdinal())
	if _, exists := s.Row(id); exists {
		return nil, ErrDuplicateRow
	}
	row := &Row{ID: id, Values: normalized, Lifecycle: LifecycleCreated}
	s.Insert(row)
	s.RefreshCells([]*Row{row}, LifecycleColumn)
	return row, nil
}

// DeleteRow tags a row deleted. A row that was never saved is removed.
func (e *Editor) DeleteRow(target Target, id Identity) error {
	s, _ := e.side(target)
	row, ok := s.Row(id)
	if !ok {
		return ErrRowNotFound
	}
	if row.Lifecycle == LifecycleCreated {
		s.Remove(id)
		return nil
	}
	row.Lifecycle = LifecycleDeleted
	s.RefreshCells([]*Row{row}, LifecycleColumn)
	return nil
}

// UndeleteRow clears a deletion tag and reclassifies the row
func (e *Editor) UndeleteRow(target Target, id Identity) error {
	s, l := e.side(target)
	row, ok := s.Row(id)
	if !ok {
		return ErrRowNotFound
	}
	if row.Lifecycle != LifecycleDeleted {
		return nil
	}
	row.Lifecycle = LifecycleUnchanged
	l.Apply(row)
	s.RefreshCells([]*Row{row}, LifecycleColumn)
	return nil
}

// Commit starts saving every dirty row of both grids. It returns
// ErrCommitInFlight, ErrNoChanges or ErrValidationRejected without calling the
// backend; otherwise the save runs on the scheduler and the outcome is
// reported through the notifier and LastCommitError.
func (e *Editor) Commit() error {
	batch, err := e.pipeline.Prepare()
	if err != nil {
		if errors.Is(err, ErrNoChanges) {
			e.notifier.Notify(Notification{Level: LevelInfo, Code: CodeNoChanges, Message: ErrNoChanges.Message})
		}
		return err
	}
	e.scheduler.Run(func(ctx context.Context) func() {
		res, err := e.persistence.Save(ctx, batch.Master, batch.Detail)
		return func() {
			if ferr := e.pipeline.Finish(batch, res, err); ferr != nil {
				e.lastErr = ferr
				if e.hooks.OnCommitFailed != nil {
					e.hooks.OnCommitFailed(ferr)
				}
				return
			}
			e.lastErr = nil
			if e.hooks.OnCommitted != nil {
				e.hooks.OnCommitted(batch)
			}
			e.load(e.query, true)
		}
	})
	return nil
}

// DirtyCounts returns the number of rows per lifecycle tag of target
func (e *Editor) DirtyCounts(target Target) map[Lifecycle]int {
	s, _ := e.side(target)
	counts := make(map[Lifecycle]int)
	s.ForEachRow(func(row *Row) bool {
		if row.IsDirty() {
			counts[row.Lifecycle]++
		}
		return true
	})
	return counts
}

func (e *Editor) transitionContext() TransitionContext {
	return TransitionContext{
		Dependent: e.dependent,
		Selected:  e.guard.Current(),
		Lookup:    e.master.Row,
	}
}

func (e *Editor) masterValueChanged(row *Row, field string, oldValue, newValue any) {
	if err := e.checkEditable(e.masterSchema, row, field); err != nil {
		e.revert(e.master, e.masterLedger, row, field, oldValue, err.Error(), CodeValidationRejected)
		return
	}
	if !e.engine.Watches(field) {
		e.masterLedger.Apply(row)
		e.master.RefreshCells([]*Row{row}, field, LifecycleColumn)
		return
	}

	req := TransitionRequest{Row: row, Field: field, Proposed: newValue, Previous: oldValue}
	d := e.engine.EvaluateTransition(req, e.transitionContext())
	switch {
	case !d.Accepted:
		e.revert(e.master, e.masterLedger, row, field, oldValue, d.Message, d.Reason)
		if e.hooks.OnRejected != nil {
			e.hooks.OnRejected(field, d.Reason)
		}
	case d.RequiresConfirmation:
		e.masterLedger.Apply(row)
		e.master.RefreshCells([]*Row{row}, field, LifecycleColumn)
		e.confirmSeq++
		token := e.confirmSeq
		e.awaiting[token] = req
		e.confirmer.Confirm(d.ConfirmTitle, d.Message,
			func() { e.confirmTransition(token, d) },
			func() { e.cancelTransition(token) },
		)
	default:
		e.applyDecision(req, d)
	}
}

func (e *Editor) revert(s Surface, l *Ledger, row *Row, field string, previous any, message, code string) {
	s.SetValue(row.ID, field, previous)
	l.Apply(row)
	s.RefreshCells([]*Row{row}, field, LifecycleColumn)
	if code == "" {
		code = CodeValidationRejected
	}
	e.notifier.Notify(Notification{Level: LevelWarning, Code: code, Message: message})
}

// stillProposed reports whether the row still carries the value the pending
// confirmation was asked for
func (e *Editor) stillProposed(req TransitionRequest) (*Row, bool) {
	row, ok := e.master.Row(req.Row.ID)
	if !ok {
		return nil, false
	}
	return row, e.masterSchema.EqualValue(req.Field, row.Values[req.Field], req.Proposed)
}

// resolve removes a pending confirmation. Answers to a confirmation dropped
// by a reload are ignored.
func (e *Editor) resolve(token uint64) (TransitionRequest, bool) {
	req, ok := e.awaiting[token]
	if ok {
		delete(e.awaiting, token)
	}
	return req, ok
}

func (e *Editor) confirmTransition(token uint64, d Decision) {
	req, ok := e.resolve(token)
	if !ok {
		return
	}
	row, ok := e.stillProposed(req)
	if !ok {
		return
	}
	req.Row = row
	e.applyDecision(req, d)
}

func (e *Editor) cancelTransition(token uint64) {
	req, ok := e.resolve(token)
	if !ok {
		return
	}
	e.restore(req)
}

// dropConfirmations cancels every pending confirmation before the master
// rows are replaced
func (e *Editor) dropConfirmations() {
	n := len(e.awaiting)
	if n == 0 {
		return
	}
	for token, req := range e.awaiting {
		delete(e.awaiting, token)
		e.restore(req)
	}
	if e.hooks.OnConfirmationsDropped != nil {
		e.hooks.OnConfirmationsDropped(n)
	}
}

func (e *Editor) restore(req TransitionRequest) {
	row, ok := e.stillProposed(req)
	if !ok {
		return
	}
	e.master.SetValue(row.ID, req.Field, req.Previous)
	e.masterLedger.Apply(row)
	e.master.RefreshCells([]*Row{row}, req.Field, LifecycleColumn)
}

func (e *Editor) applyDecision(req TransitionRequest, d Decision) {
	id := req.Row.ID
	fields := []string{req.Field}
	for _, k := range d.Replacement.Keys() {
		e.master.SetValue(id, k, d.Replacement[k])
		fields = append(fields, k)
	}
	if d.Cascade != nil {
		d.Cascade.Apply(e.dependent)
	}
	row, ok := e.master.Row(id)
	if !ok {
		return
	}
	e.masterLedger.Apply(row)
	e.master.RefreshCells([]*Row{row}, append(fields, LifecycleColumn)...)
}

func (e *Editor) detailValueChanged(row *Row, field string, oldValue any) {
	s, l := e.dependent.Surface(), e.dependent.Ledger()
	if err := e.checkEditable(e.detailSchema, row, field); err != nil {
		e.revert(s, l, row, field, oldValue, err.Error(), CodeValidationRejected)
		return
	}
	l.Apply(row)
	s.RefreshCells([]*Row{row}, field, LifecycleColumn)
}

func (e *Editor) masterSelectionChanged(rows []*Row) {
	switch e.guard.HandleSelection(rows) {
	case SelectionAllowed:
		e.loadDetail(e.guard.Current(), false)
	case SelectionCleared:
		e.dependent.Reset()
	}
}

type masterListener struct{ e *Editor }

func (m masterListener) CellEditStarted(row *Row, field string) {
	m.e.guard.EditStarted(Cell{Row: row.ID, Field: field})
}

func (m masterListener) CellEditStopped(row *Row, field string) {
	m.e.guard.EditStopped(Cell{Row: row.ID, Field: field})
}

func (m masterListener) CellValueChanged(row *Row, field string, oldValue, newValue any) {
	m.e.masterValueChanged(row, field, oldValue, newValue)
}

func (m masterListener) SelectionChanged(rows []*Row) {
	m.e.masterSelectionChanged(rows)
}

type detailListener struct{ e *Editor }

func (detailListener) CellEditStarted(*Row, string) {}

func (detailListener) CellEditStopped(*Row, string) {}

func (d detailListener) CellValueChanged(row *Row, field string, oldValue, _ any) {
	d.e.detailValueChanged(row, field, oldValue)
}

func (detailListener) SelectionChanged([]*Row) {}

// carryDirty replaces the snapshots of l with fresh and returns the rows to
// show. Rows still dirty on s survive: an updated row takes the fresh values
// with its edited fields laid over them, created and deleted rows are kept
// as they are. Every carried row is reclassified against the new snapshots.
func carryDirty(s Surface, l *Ledger, fresh []*Row) []*Row {
	type carried struct {
		row    *Row
		fields []string
	}
	dirty := make(map[Identity]carried)
	var order []Identity
	s.ForEachRow(func(row *Row) bool {
		if row.IsDirty() {
			dirty[row.ID] = carried{row: row.Clone(), fields: l.DirtyFields(row)}
			order = append(order, row.ID)
		}
		return true
	})
	l.Snapshots().Load(fresh)
	if len(dirty) == 0 {
		return fresh
	}

	merged := make([]*Row, 0, len(fresh)+len(dirty))
	for _, r := range fresh {
		c, ok := dirty[r.ID]
		if !ok {
			merged = append(merged, r)
			continue
		}
		delete(dirty, r.ID)
		row := c.row
		if row.Lifecycle == LifecycleUpdated {
			row = r.Clone()
			for _, f := range c.fields {
				row.Set(f, c.row.Get(f))
			}
		}
		l.Apply(row)
		merged = append(merged, row)
	}
	for _, id := range order {
		if c, ok := dirty[id]; ok {
			l.Apply(c.row)
			merged = append(merged, c.row)
		}
	}
	return merged
}
