package grid

import (
	"context"
	"net/url"
	"time"

	"github.com/erp/gridsync/internal/domain/shared"
)

// ErrCommittedNotFound is returned when no commit was recorded for a query
var ErrCommittedNotFound = shared.NewDomainError("NOT_FOUND", "No committed rows recorded for this query")

// CommittedRow is a row as it was handed to persistence
type CommittedRow struct {
	ID        Identity  `json:"id"`
	Lifecycle Lifecycle `json:"lifecycle"`
	Values    Values    `json:"values"`
}

// CommittedRecord is the last successful commit of a screen query
type CommittedRecord struct {
	Screen      string         `json:"screen"`
	Key         string         `json:"key"`
	Actor       string         `json:"actor,omitempty"`
	CommittedAt time.Time      `json:"committed_at"`
	DetailFor   Identity       `json:"detail_for,omitempty"`
	Master      []CommittedRow `json:"master"`
	Detail      []CommittedRow `json:"detail"`
}

// Rows returns the number of rows the record carries
func (r CommittedRecord) Rows() int {
	return len(r.Master) + len(r.Detail)
}

// CommittedStore keeps the last committed record per screen and query key
type CommittedStore interface {
	Put(ctx context.Context, record CommittedRecord) error
	Get(ctx context.Context, screen, key string) (CommittedRecord, error)
}

// NewCommittedRecord copies a settled batch into a record
func NewCommittedRecord(screen, key, actor string, at time.Time, batch *CommitBatch) CommittedRecord {
	return CommittedRecord{
		Screen:      screen,
		Key:         key,
		Actor:       actor,
		CommittedAt: at,
		DetailFor:   batch.DetailFor,
		Master:      committedRows(batch.Master),
		Detail:      committedRows(batch.Detail),
	}
}

func committedRows(rows []*Row) []CommittedRow {
	out := make([]CommittedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, CommittedRow{ID: r.ID, Lifecycle: r.Lifecycle, Values: r.Values.Clone()})
	}
	return out
}

// QueryKey returns a stable key for q. Parameters are sorted by name.
func QueryKey(q Query) string {
	v := url.Values{}
	for k, val := range q {
		v.Set(k, val)
	}
	return v.Encode()
}
