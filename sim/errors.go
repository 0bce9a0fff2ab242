package sim

import "errors"

// Error taxonomy shared by the engine and the packages built on it.
// Callers match with errors.Is; context is attached with fmt.Errorf("...: %w").
var (
	// ErrConfiguration reports invalid construction parameters (capacity, means,
	// run length). It is detected before any event runs.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidTime reports an attempt to schedule an event before the current
	// simulation time, or a negative timeout.
	ErrInvalidTime = errors.New("invalid time")

	// ErrInvalidParameter reports a sampling call with a bad distribution parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrProcessTerminated reports an attempt to resume a process that has
	// already run to completion.
	ErrProcessTerminated = errors.New("process terminated")

	// ErrProcessNotRunning reports a suspension call (Timeout, Request) made by a
	// process that does not currently hold the engine's turn.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrInvalidRelease reports releasing a unit twice or to the wrong pool.
	ErrInvalidRelease = errors.New("invalid release")

	// ErrEngineClosed reports use of an engine after Close.
	ErrEngineClosed = errors.New("engine closed")
)
