// Package grid implements the editable-grid change-tracking core: snapshots,
// the row change ledger, guarded field transitions with cascades into a
// dependent collection, the selection guard and the commit pipeline.
//
// Everything in this package runs on a single goroutine per editing session.
// Nothing here takes a lock; callers serialise events (see gridsession.Loop).
package grid

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Identity is the stable key of a row within one surface.
type Identity string

// String returns the identity as a plain string
func (id Identity) String() string {
	return string(id)
}

// Lifecycle is the CRUD intent attached to a row before persistence.
type Lifecycle string

const (
	LifecycleUnchanged Lifecycle = "unchanged"
	LifecycleCreated   Lifecycle = "created"
	LifecycleUpdated   Lifecycle = "updated"
	LifecycleDeleted   Lifecycle = "deleted"
)

// LifecycleColumn is the pseudo-column that renders a row's lifecycle indicator.
const LifecycleColumn = "_lifecycle"

// IsValid checks if the lifecycle is one of the known tags
func (l Lifecycle) IsValid() bool {
	switch l {
	case LifecycleUnchanged, LifecycleCreated, LifecycleUpdated, LifecycleDeleted:
		return true
	}
	return false
}

// String returns the string representation
func (l Lifecycle) String() string {
	if l == "" {
		return string(LifecycleUnchanged)
	}
	return string(l)
}

// IsDirty reports whether the row carries a pending change of any kind
func (l Lifecycle) IsDirty() bool {
	return l == LifecycleCreated || l == LifecycleUpdated || l == LifecycleDeleted
}

// IsExplicit reports whether the tag was set by a create/delete action and
// must never be recomputed from field values.
func (l Lifecycle) IsExplicit() bool {
	return l == LifecycleCreated || l == LifecycleDeleted
}

// Values holds a row's business fields keyed by field name.
type Values map[string]any

// Clone returns a shallow copy. Field values are immutable scalars
// (string, int64, bool, decimal.Decimal) so a shallow copy is a full copy.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Keys returns the field names in sorted order
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Row is one line of a grid: business fields plus identity and lifecycle.
type Row struct {
	ID        Identity
	Values    Values
	Lifecycle Lifecycle
}

// NewRow creates an unchanged row
func NewRow(id Identity, values Values) *Row {
	if values == nil {
		values = Values{}
	}
	return &Row{
		ID:        id,
		Values:    values,
		Lifecycle: LifecycleUnchanged,
	}
}

// Get returns the raw value of a field
func (r *Row) Get(field string) any {
	return r.Values[field]
}

// Set assigns a field value without touching the lifecycle
func (r *Row) Set(field string, value any) {
	if r.Values == nil {
		r.Values = Values{}
	}
	r.Values[field] = value
}

// String returns a field as a string
func (r *Row) String(field string) string {
	switch v := r.Values[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns a field as int64, zero when absent or not integral
func (r *Row) Int(field string) int64 {
	switch v := r.Values[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case decimal.Decimal:
		return v.IntPart()
	}
	return 0
}

// Decimal returns a field as a decimal, zero when absent
func (r *Row) Decimal(field string) decimal.Decimal {
	switch v := r.Values[field].(type) {
	case decimal.Decimal:
		return v
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Bool returns a field as bool
func (r *Row) Bool(field string) bool {
	v, _ := r.Values[field].(bool)
	return v
}

// Clone returns a deep copy of the row
func (r *Row) Clone() *Row {
	return &Row{
		ID:        r.ID,
		Values:    r.Values.Clone(),
		Lifecycle: r.Lifecycle,
	}
}

// IsDirty reports whether the row carries any pending change
func (r *Row) IsDirty() bool {
	return r.Lifecycle.IsDirty()
}
