package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/shared"
	"github.com/erp/gridsync/internal/infrastructure/logger"
)

// ErrBusStopped is returned by Publish once the bus has been stopped
var ErrBusStopped = shared.NewDomainError("EVENT_BUS_STOPPED", "event bus is not running")

// InMemoryEventBus implements EventBus with in-memory pub/sub. Handlers run
// synchronously on the publishing goroutine; a failing or panicking handler
// does not keep the others from seeing the event.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool
	// publishes hold the read side; Stop takes the write side to drain them
	inflight sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus. The bus accepts
// events immediately; Start only matters after a Stop.
func NewInMemoryEventBus(zl *zap.Logger) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   zl.Named("eventbus"),
	}
	b.running.Store(true)
	return b
}

// Publish delivers events to every registered handler. Handler failures are
// logged and joined into the returned error.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.inflight.RLock()
	defer b.inflight.RUnlock()
	if !b.running.Load() {
		return ErrBusStopped
	}

	log := logger.WithLogger(ctx, b.logger)
	var errs []error
	for _, event := range events {
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				log.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler. Without explicit event types the handler's
// own EventTypes are used; an empty list subscribes to everything.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start resumes accepting events
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started")
	return nil
}

// Stop rejects further events and waits for in-flight publishes to finish
// or ctx to expire.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)

	done := make(chan struct{})
	go func() {
		b.inflight.Lock()
		b.inflight.Unlock()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
