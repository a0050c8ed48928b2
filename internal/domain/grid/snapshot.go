package grid

// SnapshotStore holds the last-known-persisted values of every row of one
// scope, keyed by identity. A scope is always replaced in full; there is no
// per-row update.
type SnapshotStore struct {
	rows map[Identity]Values
}

// NewSnapshotStore creates an empty snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{rows: make(map[Identity]Values)}
}

// Load replaces the whole snapshot set with copies of rows
func (s *SnapshotStore) Load(rows []*Row) {
	next := make(map[Identity]Values, len(rows))
	for _, r := range rows {
		next[r.ID] = r.Values.Clone()
	}
	s.rows = next
}

// ReplaceAll replaces the snapshot set after a successful commit. Rows tagged
// deleted are no longer persisted and are left out.
func (s *SnapshotStore) ReplaceAll(rows []*Row) {
	kept := make([]*Row, 0, len(rows))
	for _, r := range rows {
		if r.Lifecycle == LifecycleDeleted {
			continue
		}
		kept = append(kept, r)
	}
	s.Load(kept)
}

// Get returns a copy of the snapshot for id
func (s *SnapshotStore) Get(id Identity) (Values, bool) {
	v, ok := s.rows[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Has reports whether a snapshot exists for id
func (s *SnapshotStore) Has(id Identity) bool {
	_, ok := s.rows[id]
	return ok
}

// Len returns the number of snapshots
func (s *SnapshotStore) Len() int {
	return len(s.rows)
}

// Clear drops every snapshot
func (s *SnapshotStore) Clear() {
	s.rows = make(map[Identity]Values)
}
