package grid

// SelectionState is the state of the selection guard
type SelectionState int

const (
	SelectionIdle SelectionState = iota
	// SelectionPendingSwitch is entered when a switch was blocked and the
	// previous selection is being restored
	SelectionPendingSwitch
)

// String returns the state name
func (s SelectionState) String() string {
	if s == SelectionPendingSwitch {
		return "pending_switch"
	}
	return "idle"
}

// SelectionOutcome is the guard's verdict on one selection event
type SelectionOutcome int

const (
	// SelectionIgnored: an edit was in progress
	SelectionIgnored SelectionOutcome = iota
	// SelectionUnchanged: the same row was selected again
	SelectionUnchanged
	// SelectionAllowed: the switch happened and the detail must be loaded
	SelectionAllowed
	// SelectionCleared: the selection was emptied
	SelectionCleared
	// SelectionBlocked: unsaved changes, prior selection restored
	SelectionBlocked
	// SelectionSwallowed: the echo of a restore
	SelectionSwallowed
)

// String returns the outcome name
func (o SelectionOutcome) String() string {
	switch o {
	case SelectionIgnored:
		return "ignored"
	case SelectionUnchanged:
		return "unchanged"
	case SelectionAllowed:
		return "allowed"
	case SelectionCleared:
		return "cleared"
	case SelectionBlocked:
		return "blocked"
	case SelectionSwallowed:
		return "swallowed"
	default:
		return "unknown"
	}
}

// UnsavedChangesMessage is the warning shown when a switch is blocked
const UnsavedChangesMessage = "There are unsaved changes. Save or revert them before selecting another row."

// SelectionGuard keeps the user on a master row while the master or the
// dependent grid holds unsaved created or updated rows.
type SelectionGuard struct {
	master       Surface
	masterLedger *Ledger
	dependent    *DependentCollection
	notifier     Notifier

	state    SelectionState
	editing  bool
	current  Identity
	lastCell Cell
}

// NewSelectionGuard creates an idle guard with nothing selected
func NewSelectionGuard(master Surface, masterLedger *Ledger, dependent *DependentCollection, notifier Notifier) *SelectionGuard {
	return &SelectionGuard{
		master:       master,
		masterLedger: masterLedger,
		dependent:    dependent,
		notifier:     notifier,
	}
}

// State returns the current state
func (g *SelectionGuard) State() SelectionState {
	return g.state
}

// Current returns the accepted master selection
func (g *SelectionGuard) Current() Identity {
	return g.current
}

// EditStarted records that a cell editor is open
func (g *SelectionGuard) EditStarted(cell Cell) {
	g.editing = true
	g.lastCell = cell
}

// EditStopped records that the cell editor closed
func (g *SelectionGuard) EditStopped(cell Cell) {
	g.editing = false
	if !cell.IsZero() {
		g.lastCell = cell
	}
}

// Editing reports whether a cell editor is open
func (g *SelectionGuard) Editing() bool {
	return g.editing
}

// Reset forgets the current selection
func (g *SelectionGuard) Reset() {
	g.current = ""
	g.lastCell = Cell{}
	g.state = SelectionIdle
}

// HandleSelection evaluates a selection event
func (g *SelectionGuard) HandleSelection(rows []*Row) SelectionOutcome {
	if g.editing {
		return SelectionIgnored
	}

	var next Identity
	if len(rows) > 0 {
		next = rows[0].ID
	}

	if g.state == SelectionPendingSwitch {
		g.state = SelectionIdle
		if next == g.current {
			return SelectionSwallowed
		}
	}

	if next == g.current {
		return SelectionUnchanged
	}

	if g.HasPendingChanges() {
		g.block()
		return SelectionBlocked
	}

	g.current = next
	if focused := g.master.Focused(); focused.Row == next {
		g.lastCell = focused
	} else {
		g.lastCell = Cell{Row: next}
	}
	if next == "" {
		return SelectionCleared
	}
	return SelectionAllowed
}

// HasPendingChanges scans every row of the master and dependent grids
func (g *SelectionGuard) HasPendingChanges() bool {
	return anyPending(g.master, g.masterLedger) ||
		(g.dependent != nil && anyPending(g.dependent.Surface(), g.dependent.Ledger()))
}

func (g *SelectionGuard) block() {
	if g.notifier != nil {
		g.notifier.Notify(Notification{
			Level:   LevelWarning,
			Code:    CodeValidationRejected,
			Message: UnsavedChangesMessage,
		})
	}
	g.state = SelectionPendingSwitch
	g.master.Select(g.current)
	cell := g.lastCell
	if cell.Row != g.current {
		cell = Cell{Row: g.current}
	}
	g.master.Focus(cell)
}

func anyPending(s Surface, l *Ledger) bool {
	pending := false
	s.ForEachRow(func(row *Row) bool {
		if l.IsPending(row) {
			pending = true
			return false
		}
		return true
	})
	return pending
}
