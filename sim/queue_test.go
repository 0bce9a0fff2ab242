package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitQueue_FIFO(t *testing.T) {
	// GIVEN a queue with processes [A, B, C]
	wq := &WaitQueue{}
	a := &Process{id: 1, name: "A"}
	b := &Process{id: 2, name: "B"}
	c := &Process{id: 3, name: "C"}
	wq.Enqueue(a)
	wq.Enqueue(b)
	wq.Enqueue(c)

	// THEN Peek returns the front without removing it
	assert.Same(t, a, wq.Peek())
	assert.Equal(t, 3, wq.Len())
	assert.Equal(t, "[A#1 B#2 C#3]", wq.String())

	// AND Dequeue preserves arrival order
	assert.Same(t, a, wq.Dequeue())
	assert.Same(t, b, wq.Dequeue())
	assert.Same(t, c, wq.Dequeue())
	assert.Equal(t, 0, wq.Len())
}

func TestWaitQueue_Empty_ReturnsNil(t *testing.T) {
	wq := &WaitQueue{}

	assert.Nil(t, wq.Peek())
	assert.Nil(t, wq.Dequeue())
	assert.Equal(t, "[]", wq.String())
}

func TestWaitQueue_Enqueue_NilPanics(t *testing.T) {
	wq := &WaitQueue{}

	assert.Panics(t, func() { wq.Enqueue(nil) })
}
