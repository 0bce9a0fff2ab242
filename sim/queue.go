// Implements the WaitQueue, which holds the processes blocked on a ResourcePool.
// Processes are enqueued when they request a unit while the pool is full.

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue represents a FIFO queue of processes waiting for a resource unit.
type WaitQueue struct {
	queue []*Process // FIFO queue of blocked requests
}

// Enqueue adds a process to the back of the wait queue.
func (wq *WaitQueue) Enqueue(p *Process) {
	if p == nil {
		panic("Enqueue: p must not be nil")
	}
	wq.queue = append(wq.queue, p)
}

func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range wq.queue {
		sb.WriteString(fmt.Sprint(val))
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of processes in the queue.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Peek returns the process at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Peek() *Process {
	if len(wq.queue) == 0 {
		return nil
	}
	return wq.queue[0]
}

// Dequeue removes and returns the process at the front of the queue.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Dequeue() *Process {
	if len(wq.queue) == 0 {
		return nil
	}
	head := wq.queue[0]
	wq.queue[0] = nil
	wq.queue = wq.queue[1:]
	return head
}
