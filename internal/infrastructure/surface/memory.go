// Package surface provides an in-memory grid surface. It stands in for the
// visual widget: it owns the row objects, keeps selection and focus, raises
// surface events and records which cells were asked to refresh so a remote
// client can repaint only those.
package surface

import (
	"github.com/erp/gridsync/internal/domain/grid"
)

// Refresh is one recorded refresh request
type Refresh struct {
	Rows   []grid.Identity `json:"rows"`
	Fields []string        `json:"fields"`
}

// MemorySurface is a grid.Surface backed by a slice. It is not safe for
// concurrent use; a session drives it from its event loop.
type MemorySurface struct {
	name      string
	rows      []*grid.Row
	index     map[grid.Identity]int
	selected  grid.Identity
	focused   grid.Cell
	editing   *grid.Cell
	listeners []grid.SurfaceListener
	refreshes []Refresh
}

var _ grid.Surface = (*MemorySurface)(nil)

// New creates an empty surface
func New(name string) *MemorySurface {
	return &MemorySurface{
		name:  name,
		index: make(map[grid.Identity]int),
	}
}

// Name returns the surface name
func (s *MemorySurface) Name() string {
	return s.name
}

// Len returns the number of rows
func (s *MemorySurface) Len() int {
	return len(s.rows)
}

// ForEachRow visits rows in display order
func (s *MemorySurface) ForEachRow(fn func(row *grid.Row) bool) {
	for _, r := range s.rows {
		if !fn(r) {
			return
		}
	}
}

// SelectedRows returns the selected row, if any
func (s *MemorySurface) SelectedRows() []*grid.Row {
	if s.selected == "" {
		return nil
	}
	if r, ok := s.Row(s.selected); ok {
		return []*grid.Row{r}
	}
	return nil
}

// RefreshCells records a refresh request
func (s *MemorySurface) RefreshCells(rows []*grid.Row, fields ...string) {
	if len(rows) == 0 {
		return
	}
	ids := make([]grid.Identity, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	s.refreshes = append(s.refreshes, Refresh{Rows: ids, Fields: append([]string(nil), fields...)})
}

// Row returns the row with identity id
func (s *MemorySurface) Row(id grid.Identity) (*grid.Row, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.rows[i], true
}

// SetValue writes a value without raising an event
func (s *MemorySurface) SetValue(id grid.Identity, field string, value any) bool {
	r, ok := s.Row(id)
	if !ok {
		return false
	}
	r.Set(field, value)
	return true
}

// Replace swaps the row set and keeps the selection when the selected
// identity survives
func (s *MemorySurface) Replace(rows []*grid.Row) {
	s.rows = append([]*grid.Row(nil), rows...)
	s.reindex()
	if _, ok := s.index[s.selected]; !ok {
		s.selected = ""
	}
	if _, ok := s.index[s.focused.Row]; !ok {
		s.focused = grid.Cell{}
	}
	s.editing = nil
}

// Insert appends a row
func (s *MemorySurface) Insert(row *grid.Row) {
	s.rows = append(s.rows, row)
	s.index[row.ID] = len(s.rows) - 1
}

// Remove drops a row
func (s *MemorySurface) Remove(id grid.Identity) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	s.reindex()
	if s.selected == id {
		s.selected = ""
	}
	if s.focused.Row == id {
		s.focused = grid.Cell{}
	}
	return true
}

// Select moves the selection and raises SelectionChanged
func (s *MemorySurface) Select(id grid.Identity) {
	if id != "" {
		if _, ok := s.index[id]; !ok {
			return
		}
	}
	s.selected = id
	rows := s.SelectedRows()
	for _, l := range s.listeners {
		l.SelectionChanged(rows)
	}
}

// Focus moves the focused cell
func (s *MemorySurface) Focus(cell grid.Cell) {
	s.focused = cell
}

// Focused returns the focused cell
func (s *MemorySurface) Focused() grid.Cell {
	return s.focused
}

// Subscribe registers a listener
func (s *MemorySurface) Subscribe(listener grid.SurfaceListener) {
	s.listeners = append(s.listeners, listener)
}

// BeginEdit opens a cell editor as a user would
func (s *MemorySurface) BeginEdit(id grid.Identity, field string) error {
	r, ok := s.Row(id)
	if !ok {
		return grid.ErrRowNotFound
	}
	cell := grid.Cell{Row: id, Field: field}
	s.editing = &cell
	s.focused = cell
	for _, l := range s.listeners {
		l.CellEditStarted(r, field)
	}
	return nil
}

// EndEdit closes the open cell editor
func (s *MemorySurface) EndEdit() {
	if s.editing == nil {
		return
	}
	cell := *s.editing
	s.editing = nil
	r, ok := s.Row(cell.Row)
	if !ok {
		return
	}
	for _, l := range s.listeners {
		l.CellEditStopped(r, cell.Field)
	}
}

// Editing returns the cell being edited
func (s *MemorySurface) Editing() (grid.Cell, bool) {
	if s.editing == nil {
		return grid.Cell{}, false
	}
	return *s.editing, true
}

// Edit sets a value as a user would and raises CellValueChanged when the
// value actually changed
func (s *MemorySurface) Edit(id grid.Identity, field string, value any) error {
	r, ok := s.Row(id)
	if !ok {
		return grid.ErrRowNotFound
	}
	old := r.Get(field)
	if old == value {
		return nil
	}
	r.Set(field, value)
	s.focused = grid.Cell{Row: id, Field: field}
	for _, l := range s.listeners {
		l.CellValueChanged(r, field, old, value)
	}
	return nil
}

// DrainRefreshes returns and clears the recorded refresh requests
func (s *MemorySurface) DrainRefreshes() []Refresh {
	out := s.refreshes
	s.refreshes = nil
	return out
}

// Snapshot returns copies of every row in display order
func (s *MemorySurface) Snapshot() []*grid.Row {
	out := make([]*grid.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.Clone())
	}
	return out
}

func (s *MemorySurface) reindex() {
	s.index = make(map[grid.Identity]int, len(s.rows))
	for i, r := range s.rows {
		s.index[r.ID] = i
	}
}
