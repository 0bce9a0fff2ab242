package sim

import (
	"fmt"
	"math"
	"runtime"
)

// ProcessState is the lifecycle state of a process.
type ProcessState string

const (
	StateReady      ProcessState = "ready"      // spawned, start event pending
	StateRunning    ProcessState = "running"    // holds the engine's turn
	StateTimeout    ProcessState = "timeout"    // suspended until a scheduled time
	StateWaiting    ProcessState = "waiting"    // suspended in a resource pool's wait queue
	StateTerminated ProcessState = "terminated" // body returned, or unwound by Engine.Close
)

// ProcessFunc is the body of a process. It runs cooperatively and suspends
// only through Timeout, WaitUntil and ResourcePool.Request. A non-nil return
// aborts the engine's Run.
type ProcessFunc func(p *Process) error

// resumption is what the engine hands a suspended process.
type resumption struct {
	payload any
	kill    bool
}

// Process is a suspendable unit of behaviour. Each process body runs on its
// own goroutine, but control passes strictly back and forth with the engine
// over unbuffered channels, so process bodies never run concurrently.
type Process struct {
	id     uint64
	name   string
	engine *Engine
	fn     ProcessFunc

	state ProcessState
	err   error

	resumeCh chan resumption
	yieldCh  chan struct{}
}

func newProcess(e *Engine, id uint64, name string, fn ProcessFunc) *Process {
	return &Process{
		id:       id,
		name:     name,
		engine:   e,
		fn:       fn,
		state:    StateReady,
		resumeCh: make(chan resumption),
		yieldCh:  make(chan struct{}),
	}
}

// ID returns the spawn-order identity of the process.
func (p *Process) ID() uint64 { return p.id }

// Name returns the name given at spawn.
func (p *Process) Name() string { return p.name }

// State returns the current lifecycle state.
func (p *Process) State() ProcessState { return p.state }

// Engine returns the engine the process belongs to.
func (p *Process) Engine() *Engine { return p.engine }

// Now is shorthand for p.Engine().Now().
func (p *Process) Now() float64 { return p.engine.now }

func (p *Process) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", p.name, p.id)
}

// Timeout suspends the process for d units of simulated time.
func (p *Process) Timeout(d float64) error {
	if math.IsNaN(d) || d < 0 {
		return fmt.Errorf("%w: %s requested timeout %v", ErrInvalidTime, p, d)
	}
	return p.WaitUntil(p.engine.now + d)
}

// WaitUntil suspends the process until simulated time t.
func (p *Process) WaitUntil(t float64) error {
	if p.state != StateRunning {
		return fmt.Errorf("%w: %s is %s", ErrProcessNotRunning, p, p.state)
	}
	if err := p.engine.ScheduleAt(t, p, nil); err != nil {
		return err
	}
	p.suspend(StateTimeout)
	return nil
}

// loop is the goroutine hosting the process body.
func (p *Process) loop() {
	first := <-p.resumeCh
	defer func() {
		p.state = StateTerminated
		p.yieldCh <- struct{}{}
	}()
	if first.kill {
		return
	}
	p.state = StateRunning
	p.err = p.fn(p)
}

// suspend hands the turn back to the engine and blocks until resumed.
// Runs on the process goroutine.
func (p *Process) suspend(state ProcessState) any {
	p.state = state
	p.yieldCh <- struct{}{}
	r := <-p.resumeCh
	if r.kill {
		runtime.Goexit()
	}
	p.state = StateRunning
	return r.payload
}

// resume gives the turn to the process and waits for it to yield or finish.
// Runs on the engine side.
func (p *Process) resume(payload any) error {
	if p.state == StateTerminated {
		return fmt.Errorf("%w: cannot resume %s", ErrProcessTerminated, p)
	}
	p.resumeCh <- resumption{payload: payload}
	<-p.yieldCh
	if p.state != StateTerminated {
		return nil
	}
	delete(p.engine.live, p.id)
	if p.err != nil {
		return fmt.Errorf("process %s: %w", p, p.err)
	}
	return nil
}

// kill unwinds a process that never finished. Deferred calls in the body run.
func (p *Process) kill() {
	if p.state == StateTerminated {
		return
	}
	p.resumeCh <- resumption{kill: true}
	<-p.yieldCh
}
