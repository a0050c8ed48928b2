package gridsession

import (
	"context"

	"github.com/erp/gridsync/internal/domain/grid"
)

// Metrics records session activity
type Metrics interface {
	SessionOpened(ctx context.Context, screen string)
	SessionClosed(ctx context.Context, screen string)
	CommitFinished(ctx context.Context, screen string, rows int, err error)
	TransitionRejected(ctx context.Context, screen, field, reason string)
	StaleLoadDiscarded(ctx context.Context, screen string, target grid.Target)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) SessionOpened(context.Context, string)                      {}
func (NoopMetrics) SessionClosed(context.Context, string)                      {}
func (NoopMetrics) CommitFinished(context.Context, string, int, error)         {}
func (NoopMetrics) TransitionRejected(context.Context, string, string, string) {}
func (NoopMetrics) StaleLoadDiscarded(context.Context, string, grid.Target)    {}
