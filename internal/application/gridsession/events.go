package gridsession

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

const (
	// EventTypeGridCommitted is published after a commit settled
	EventTypeGridCommitted = "GridCommitted"
	// SourceTypeGridSession marks events raised by a session
	SourceTypeGridSession = "GridSession"
)

// GridCommittedEvent carries the rows a session saved
type GridCommittedEvent struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID            `json:"session_id"`
	Record    grid.CommittedRecord `json:"record"`
}

// NewGridCommittedEvent creates a GridCommittedEvent
func NewGridCommittedEvent(sessionID uuid.UUID, record grid.CommittedRecord) *GridCommittedEvent {
	return &GridCommittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGridCommitted, SourceTypeGridSession, sessionID, record.CommittedAt),
		SessionID:       sessionID,
		Record:          record,
	}
}

// CommittedStoreHandler writes GridCommittedEvent records to a store
type CommittedStoreHandler struct {
	store  grid.CommittedStore
	logger *zap.Logger
}

// NewCommittedStoreHandler creates a handler for committed events
func NewCommittedStoreHandler(store grid.CommittedStore, logger *zap.Logger) *CommittedStoreHandler {
	return &CommittedStoreHandler{store: store, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *CommittedStoreHandler) EventTypes() []string {
	return []string{EventTypeGridCommitted}
}

// Handle stores the committed record
func (h *CommittedStoreHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	committed, ok := event.(*GridCommittedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", EventTypeGridCommitted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			EventTypeGridCommitted, event.EventType())
	}

	if err := h.store.Put(ctx, committed.Record); err != nil {
		h.logger.Error("failed to store committed rows",
			zap.String("screen", committed.Record.Screen),
			zap.String("key", committed.Record.Key),
			zap.Error(err),
		)
		return err
	}

	h.logger.Debug("committed rows stored",
		zap.String("session_id", committed.SessionID.String()),
		zap.String("screen", committed.Record.Screen),
		zap.Int("rows", committed.Record.Rows()),
	)
	return nil
}
