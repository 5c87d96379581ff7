package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	r := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	r.Register(typed, "a", "b")
	r.Register(typed, "a")
	r.Register(wildcard)

	assert.Len(t, r.GetHandlers("a"), 2, "duplicate registration is ignored")
	assert.Len(t, r.GetHandlers("b"), 2)
	assert.Len(t, r.GetHandlers("c"), 1)
	assert.Equal(t, 2, r.Len())
}

func TestHandlerRegistry_Order(t *testing.T) {
	r := NewHandlerRegistry()
	wildcard := newTestHandler()
	typed := newTestHandler()

	r.Register(wildcard)
	r.Register(typed, "a")

	handlers := r.GetHandlers("a")
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	r := NewHandlerRegistry()
	h1 := newTestHandler()
	h2 := newTestHandler()

	r.Register(h1, "a", "b")
	r.Register(h1)
	r.Register(h2, "a")

	r.Unregister(h1)

	assert.Len(t, r.GetHandlers("a"), 1)
	assert.Empty(t, r.GetHandlers("b"))
	assert.Equal(t, 1, r.Len())

	r.Unregister(h2)
	assert.Zero(t, r.Len())
}
