package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// Commit outcomes
const (
	OutcomeSaved  = "saved"
	OutcomeFailed = "failed"
)

// GridMetrics records editing session activity as OpenTelemetry instruments.
type GridMetrics struct {
	sessions   *UpDownCounter
	commits    *Counter
	commitRows *Histogram
	rejections *Counter
	staleLoads *Counter
}

// NewGridMetrics creates the grid instruments on meter.
func NewGridMetrics(meter metric.Meter) (*GridMetrics, error) {
	sessions, err := NewUpDownCounter(meter, "grid.sessions.active", "Open editing sessions", "{session}")
	if err != nil {
		return nil, err
	}
	commits, err := NewCounter(meter, "grid.commits", "Finished commit attempts", "{commit}")
	if err != nil {
		return nil, err
	}
	commitRows, err := NewHistogram(meter, "grid.commit.rows", "Rows sent per successful commit", "{row}", CommitRowBuckets...)
	if err != nil {
		return nil, err
	}
	rejections, err := NewCounter(meter, "grid.transitions.rejected", "Edits reverted by a guard", "{edit}")
	if err != nil {
		return nil, err
	}
	staleLoads, err := NewCounter(meter, "grid.loads.stale", "Load results discarded because the selection moved on", "{load}")
	if err != nil {
		return nil, err
	}
	return &GridMetrics{
		sessions:   sessions,
		commits:    commits,
		commitRows: commitRows,
		rejections: rejections,
		staleLoads: staleLoads,
	}, nil
}

func (m *GridMetrics) SessionOpened(ctx context.Context, screen string) {
	m.sessions.Add(ctx, 1, AttrScreen.String(screen))
}

func (m *GridMetrics) SessionClosed(ctx context.Context, screen string) {
	m.sessions.Add(ctx, -1, AttrScreen.String(screen))
}

// CommitFinished counts the commit by outcome. Failures carry the domain
// error code when there is one.
func (m *GridMetrics) CommitFinished(ctx context.Context, screen string, rows int, err error) {
	if err == nil {
		m.commits.Inc(ctx, AttrScreen.String(screen), AttrOutcome.String(OutcomeSaved))
		m.commitRows.Record(ctx, int64(rows), AttrScreen.String(screen))
		return
	}
	outcome := OutcomeFailed
	var de *shared.DomainError
	if errors.As(err, &de) {
		outcome = de.Code
	}
	m.commits.Inc(ctx, AttrScreen.String(screen), AttrOutcome.String(outcome))
}

// TransitionRejected counts by field only; the reason text is unbounded.
func (m *GridMetrics) TransitionRejected(ctx context.Context, screen, field, _ string) {
	m.rejections.Inc(ctx, AttrScreen.String(screen), AttrField.String(field))
}

func (m *GridMetrics) StaleLoadDiscarded(ctx context.Context, screen string, target grid.Target) {
	m.staleLoads.Inc(ctx, AttrScreen.String(screen), AttrTarget.String(string(target)))
}

var _ gridsession.Metrics = (*GridMetrics)(nil)
