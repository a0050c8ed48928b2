package grid

// Cell addresses one cell of a surface
type Cell struct {
	Row   Identity
	Field string
}

// IsZero reports whether the cell addresses nothing
func (c Cell) IsZero() bool {
	return c.Row == "" && c.Field == ""
}

// Surface is the tabular editing widget the engine drives. The surface owns
// the row objects; the engine reads them on demand and writes through
// SetValue, which never raises CellValueChanged.
type Surface interface {
	// ForEachRow visits every row, visible or not, until fn returns false
	ForEachRow(fn func(row *Row) bool)
	SelectedRows() []*Row
	// RefreshCells marks the given fields of rows for a visual refresh
	RefreshCells(rows []*Row, fields ...string)
	Row(id Identity) (*Row, bool)
	SetValue(id Identity, field string, value any) bool
	// Replace swaps the whole row set. The selection survives when a row
	// with the same identity is still present and is dropped otherwise,
	// without raising SelectionChanged.
	Replace(rows []*Row)
	Insert(row *Row)
	Remove(id Identity) bool
	// Select moves the selection to id, or clears it when id is empty.
	// The surface reports the change through SelectionChanged like any
	// user-driven selection.
	Select(id Identity)
	Focus(cell Cell)
	Focused() Cell
	Subscribe(listener SurfaceListener)
}

// SurfaceListener receives surface events
type SurfaceListener interface {
	CellEditStarted(row *Row, field string)
	CellEditStopped(row *Row, field string)
	CellValueChanged(row *Row, field string, oldValue, newValue any)
	SelectionChanged(rows []*Row)
}

// Rows collects every row of a surface
func Rows(s Surface) []*Row {
	var rows []*Row
	s.ForEachRow(func(r *Row) bool {
		rows = append(rows, r)
		return true
	})
	return rows
}

// SelectedIdentity returns the identity of the first selected row
func SelectedIdentity(s Surface) Identity {
	rows := s.SelectedRows()
	if len(rows) == 0 {
		return ""
	}
	return rows[0].ID
}
