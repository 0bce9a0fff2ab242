package sim

import "fmt"

// PendingEvent is a scheduled wake-up of a process.
// Events are ordered by Time; events sharing a Time keep insertion order via Seq.
type PendingEvent struct {
	Time    float64  // Simulation time at which the process is resumed
	Seq     uint64   // Insertion sequence number, the FIFO tie-breaker
	Process *Process // Process to resume
	Payload any      // Optional value handed to the process on resumption (e.g. a granted *Unit)
}

func (e *PendingEvent) String() string {
	return fmt.Sprintf("PendingEvent: (Time: %.6f, Seq: %d, Process: %s)", e.Time, e.Seq, e.Process)
}

// eventHeap implements heap.Interface with deterministic ordering.
// Order by: time → insertion sequence.
type eventHeap []*PendingEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*PendingEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}
