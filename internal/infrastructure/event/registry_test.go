package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, "GridCommitted", "SessionClosed")

	assert.Len(t, registry.GetHandlers("GridCommitted"), 1)
	assert.Len(t, registry.GetHandlers("SessionClosed"), 1)
	assert.Empty(t, registry.GetHandlers("Unknown"))
	assert.Equal(t, []string{"GridCommitted", "SessionClosed"}, registry.EventTypes())
}

func TestHandlerRegistry_RegisterTwiceIsNoop(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, "GridCommitted")
	registry.Register(handler, "GridCommitted")
	registry.Register(handler)
	registry.Register(handler)

	// one typed registration plus one wildcard
	assert.Len(t, registry.GetHandlers("GridCommitted"), 2)
	assert.Len(t, registry.GetHandlers("Other"), 1)
}

func TestHandlerRegistry_WildcardAfterTyped(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(wildcard)
	registry.Register(typed, "GridCommitted")

	handlers := registry.GetHandlers("GridCommitted")
	assert.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	a := newTestHandler()
	b := newTestHandler()

	registry.Register(a, "GridCommitted")
	registry.Register(b, "GridCommitted")
	registry.Register(a)

	registry.Unregister(a)

	handlers := registry.GetHandlers("GridCommitted")
	assert.Len(t, handlers, 1)
	assert.Same(t, b, handlers[0])

	registry.Unregister(b)
	assert.Empty(t, registry.GetHandlers("GridCommitted"))
	assert.Empty(t, registry.EventTypes())
}
