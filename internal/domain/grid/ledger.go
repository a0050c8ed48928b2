package grid

// Ledger derives a row's lifecycle tag by comparing its tracked fields with
// the row's snapshot. One ledger exists per grid (master and detail).
type Ledger struct {
	schema    *Schema
	snapshots *SnapshotStore
}

// NewLedger creates a ledger over schema and snapshots
func NewLedger(schema *Schema, snapshots *SnapshotStore) *Ledger {
	return &Ledger{schema: schema, snapshots: snapshots}
}

// Schema returns the ledger's schema
func (l *Ledger) Schema() *Schema {
	return l.schema
}

// Snapshots returns the ledger's snapshot store
func (l *Ledger) Snapshots() *SnapshotStore {
	return l.snapshots
}

// Classify returns the lifecycle the row should carry.
//
// Created and deleted are explicit and returned as is. Otherwise the row is
// updated if any tracked field differs from its snapshot and unchanged if none
// does, so reverting an edit clears the dirty state. A non-created row with no
// snapshot cannot be proven clean and is classified as updated.
func (l *Ledger) Classify(row *Row) Lifecycle {
	if row.Lifecycle.IsExplicit() {
		return row.Lifecycle
	}
	snap, ok := l.snapshots.Get(row.ID)
	if !ok {
		return LifecycleUpdated
	}
	for _, f := range l.schema.Fields {
		if !f.Tracked {
			continue
		}
		if !equal(f.Kind, row.Values[f.Name], snap[f.Name]) {
			return LifecycleUpdated
		}
	}
	return LifecycleUnchanged
}

// Apply classifies the row and stores the result on it. It reports whether the
// tag changed.
func (l *Ledger) Apply(row *Row) bool {
	prev := row.Lifecycle
	if prev == "" {
		prev = LifecycleUnchanged
	}
	row.Lifecycle = l.Classify(row)
	return row.Lifecycle != prev
}

// DirtyFields lists the tracked fields that differ from the snapshot. Every
// tracked field is listed for a row without a snapshot.
func (l *Ledger) DirtyFields(row *Row) []string {
	snap, ok := l.snapshots.Get(row.ID)
	if !ok {
		return l.schema.TrackedFields()
	}
	var fields []string
	for _, f := range l.schema.Fields {
		if f.Tracked && !equal(f.Kind, row.Values[f.Name], snap[f.Name]) {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// IsPending reports whether the row would block a selection switch
func (l *Ledger) IsPending(row *Row) bool {
	switch l.Classify(row) {
	case LifecycleCreated, LifecycleUpdated:
		return true
	}
	return false
}
