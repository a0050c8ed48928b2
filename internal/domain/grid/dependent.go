package grid

// DependentCollection is the detail grid of the currently selected master
// row: its surface, its ledger and the master identity it was loaded for.
// Master-driven changes reach it only through a Cascade.
type DependentCollection struct {
	surface   Surface
	ledger    *Ledger
	loadedFor Identity
	loaded    bool
}

// NewDependentCollection creates an unloaded dependent collection
func NewDependentCollection(surface Surface, ledger *Ledger) *DependentCollection {
	return &DependentCollection{surface: surface, ledger: ledger}
}

// Surface returns the detail surface
func (d *DependentCollection) Surface() Surface {
	return d.surface
}

// Ledger returns the detail ledger
func (d *DependentCollection) Ledger() *Ledger {
	return d.ledger
}

// LoadedFor returns the master identity the collection holds rows for
func (d *DependentCollection) LoadedFor() (Identity, bool) {
	return d.loadedFor, d.loaded
}

// IsLoadedFor reports whether the collection holds the rows of master
func (d *DependentCollection) IsLoadedFor(master Identity) bool {
	return d.loaded && d.loadedFor == master
}

// Load replaces the collection's rows and snapshots with the detail rows of
// master
func (d *DependentCollection) Load(master Identity, rows []*Row) {
	d.ledger.Snapshots().Load(rows)
	d.surface.Replace(rows)
	d.loadedFor = master
	d.loaded = true
}

// Merge refreshes the rows of master like Load but keeps the rows that are
// still dirty
func (d *DependentCollection) Merge(master Identity, rows []*Row) {
	d.surface.Replace(carryDirty(d.surface, d.ledger, rows))
	d.loadedFor = master
	d.loaded = true
}

// Reset empties the collection
func (d *DependentCollection) Reset() {
	d.ledger.Snapshots().Clear()
	d.surface.Replace(nil)
	d.loadedFor = ""
	d.loaded = false
}

// Cascade propagates a master row's new state into every dependent row
type Cascade struct {
	Target Values
}

// NewCascade creates a cascade that sets target on every dependent row
func NewCascade(target Values) *Cascade {
	return &Cascade{Target: target}
}

// Apply sets the target values on every non-deleted row that does not already
// carry them, reclassifies those rows and refreshes them. Rows already at the
// target are left alone, so applying the same cascade twice is a no-op.
// It returns the rows that changed.
func (c *Cascade) Apply(d *DependentCollection) []*Row {
	if c == nil || d == nil || !d.loaded {
		return nil
	}
	schema := d.ledger.Schema()
	fields := c.Target.Keys()
	var changed []*Row
	d.surface.ForEachRow(func(row *Row) bool {
		if row.Lifecycle == LifecycleDeleted {
			return true
		}
		touched := false
		for _, f := range fields {
			want := c.Target[f]
			if schema.EqualValue(f, row.Values[f], want) {
				continue
			}
			d.surface.SetValue(row.ID, f, want)
			touched = true
		}
		if touched {
			d.ledger.Apply(row)
			changed = append(changed, row)
		}
		return true
	})
	if len(changed) > 0 {
		d.surface.RefreshCells(changed, append(fields, LifecycleColumn)...)
	}
	return changed
}
