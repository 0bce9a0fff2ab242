// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
)

// Engine is the core object that holds simulation time, the pending-event set
// and the dispatch loop. Exactly one party runs at any instant: either the
// engine itself or the single process it has resumed.
//
// Thread-safety: NOT thread-safe. All calls must come from the goroutine that
// drives Run or from inside a running process.
type Engine struct {
	now   float64
	queue eventHeap
	seq   uint64

	nextPID uint64
	live    map[uint64]*Process

	hooks  []Hook
	closed bool
}

// NewEngine creates an engine with its clock at zero and nothing scheduled.
func NewEngine() *Engine {
	e := &Engine{
		queue: make(eventHeap, 0),
		live:  make(map[uint64]*Process),
	}
	heap.Init(&e.queue)
	return e
}

// Now returns the current simulation time.
func (e *Engine) Now() float64 {
	return e.now
}

// Pending returns the number of scheduled, not yet dispatched events.
func (e *Engine) Pending() int {
	return len(e.queue)
}

// Live returns the number of spawned processes that have not terminated.
func (e *Engine) Live() int {
	return len(e.live)
}

// AcceptHook registers a hook invoked around every dispatch.
func (e *Engine) AcceptHook(hook Hook) {
	e.hooks = append(e.hooks, hook)
}

func (e *Engine) invokeHooks(pos *HookPos, ev *PendingEvent) {
	for _, h := range e.hooks {
		h.Func(HookCtx{Engine: e, Pos: pos, Item: ev})
	}
}

// ScheduleAt inserts a wake-up of p at time t. Scheduling in the past is rejected.
func (e *Engine) ScheduleAt(t float64, p *Process, payload any) error {
	if e.closed {
		return ErrEngineClosed
	}
	if math.IsNaN(t) || t < e.now {
		return fmt.Errorf("%w: cannot schedule %s at %v, now %v", ErrInvalidTime, p, t, e.now)
	}
	if p == nil {
		return fmt.Errorf("%w: event at %v has no process", ErrConfiguration, t)
	}
	e.seq++
	heap.Push(&e.queue, &PendingEvent{Time: t, Seq: e.seq, Process: p, Payload: payload})
	return nil
}

// Advance pops the earliest pending event and moves the clock to its time.
// Returns false when nothing is scheduled.
func (e *Engine) Advance() (*PendingEvent, bool) {
	if len(e.queue) == 0 {
		return nil, false
	}
	ev := heap.Pop(&e.queue).(*PendingEvent)
	e.now = ev.Time
	return ev, true
}

// Dispatch resumes the process carried by ev and returns once it yields again.
func (e *Engine) Dispatch(ev *PendingEvent) error {
	e.invokeHooks(HookPosBeforeEvent, ev)
	err := ev.Process.resume(ev.Payload)
	e.invokeHooks(HookPosAfterEvent, ev)
	return err
}

// Run dispatches events until the pending set is empty or the next event lies
// beyond until. The clock is left at until (for finite until). The first
// dispatch error aborts the run and is returned.
func (e *Engine) Run(until float64) error {
	if e.closed {
		return ErrEngineClosed
	}
	if math.IsNaN(until) || until < e.now {
		return fmt.Errorf("%w: run until %v, now %v", ErrInvalidTime, until, e.now)
	}
	dispatched := 0
	for len(e.queue) > 0 && e.queue[0].Time <= until {
		ev, _ := e.Advance()
		if err := e.Dispatch(ev); err != nil {
			logrus.Errorf("[t=%.4f] run aborted after %d events: %v", e.now, dispatched, err)
			return err
		}
		dispatched++
	}
	if !math.IsInf(until, 1) {
		e.now = until
	}
	logrus.Debugf("[t=%.4f] run stopped after %d events, %d pending", e.now, dispatched, len(e.queue))
	return nil
}

// Spawn creates a process and schedules its start at the current time.
func (e *Engine) Spawn(name string, fn ProcessFunc) (*Process, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: process %q has no body", ErrConfiguration, name)
	}
	e.nextPID++
	p := newProcess(e, e.nextPID, name, fn)
	if err := e.ScheduleAt(e.now, p, nil); err != nil {
		return nil, err
	}
	e.live[p.id] = p
	go p.loop()
	return p, nil
}

// Close unwinds every process that is still suspended, in spawn order, and
// discards the pending-event set. The engine cannot be used afterwards.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	ids := make([]uint64, 0, len(e.live))
	for id := range e.live {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		e.live[id].kill()
	}
	e.live = nil
	e.queue = nil
}
