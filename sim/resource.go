package sim

import (
	"fmt"
)

// Unit is one committed server of a ResourcePool, held by a single process
// until released.
type Unit struct {
	pool     *ResourcePool
	id       uint64
	holder   *Process
	released bool
}

// Pool returns the pool the unit belongs to.
func (u *Unit) Pool() *ResourcePool { return u.pool }

// Holder returns the process the unit was granted to.
func (u *Unit) Holder() *Process { return u.holder }

// ResourcePool is a finite set of interchangeable servers with a FIFO wait
// queue. Invariant: 0 <= occupied <= capacity, and a non-empty wait queue
// implies occupied == capacity.
type ResourcePool struct {
	engine   *Engine
	name     string
	capacity int
	occupied int
	waitQ    *WaitQueue
	granted  uint64
}

// NewResourcePool creates a pool of capacity units bound to engine.
func NewResourcePool(engine *Engine, name string, capacity int) (*ResourcePool, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: resource %q has no engine", ErrConfiguration, name)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: resource %q capacity must be >= 1, got %d", ErrConfiguration, name, capacity)
	}
	return &ResourcePool{
		engine:   engine,
		name:     name,
		capacity: capacity,
		waitQ:    &WaitQueue{},
	}, nil
}

// Name returns the resource identifier.
func (rp *ResourcePool) Name() string { return rp.name }

// Capacity returns the fixed number of units.
func (rp *ResourcePool) Capacity() int { return rp.capacity }

// Occupied returns the number of units currently held.
func (rp *ResourcePool) Occupied() int { return rp.occupied }

// QueueLength returns the number of blocked requests.
func (rp *ResourcePool) QueueLength() int { return rp.waitQ.Len() }

// NumberInSystem returns occupied + queued.
func (rp *ResourcePool) NumberInSystem() int { return rp.occupied + rp.waitQ.Len() }

func (rp *ResourcePool) String() string {
	return fmt.Sprintf("ResourcePool: (Name: %s, Occupied: %d/%d, WaitQ: %s)", rp.name, rp.occupied, rp.capacity, rp.waitQ)
}

func (rp *ResourcePool) grant(p *Process) *Unit {
	rp.occupied++
	rp.granted++
	return &Unit{pool: rp, id: rp.granted, holder: p}
}

// Request obtains a unit for p, which must be the running process. It returns
// immediately when a unit is free; otherwise p joins the tail of the wait
// queue and suspends until Release hands it a unit.
func (rp *ResourcePool) Request(p *Process) (*Unit, error) {
	if p == nil || p.state != StateRunning {
		return nil, fmt.Errorf("%w: %s requested %s", ErrProcessNotRunning, p, rp.name)
	}
	if p.engine != rp.engine {
		return nil, fmt.Errorf("%w: %s belongs to another engine than %s", ErrConfiguration, p, rp.name)
	}
	if rp.occupied < rp.capacity {
		return rp.grant(p), nil
	}
	rp.waitQ.Enqueue(p)
	payload := p.suspend(StateWaiting)
	unit, ok := payload.(*Unit)
	if !ok || unit.pool != rp {
		return nil, fmt.Errorf("%w: %s resumed without a %s unit", ErrInvalidRelease, p, rp.name)
	}
	return unit, nil
}

// Release returns u to the pool. When requests are waiting, the head of the
// queue is granted the freed unit and resumed at the current time.
func (rp *ResourcePool) Release(u *Unit) error {
	if u == nil || u.pool != rp {
		return fmt.Errorf("%w: unit does not belong to %s", ErrInvalidRelease, rp.name)
	}
	if u.released {
		return fmt.Errorf("%w: unit %d of %s already released", ErrInvalidRelease, u.id, rp.name)
	}
	u.released = true
	rp.occupied--
	next := rp.waitQ.Dequeue()
	if next == nil {
		return nil
	}
	return rp.engine.ScheduleAt(rp.engine.now, next, rp.grant(next))
}
