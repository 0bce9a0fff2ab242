// Package sim provides the core discrete-event simulation engine for desim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - simulator.go: the Engine, its clock, pending-event set and dispatch loop
//   - process.go: cooperatively scheduled processes and their suspension points
//   - resource.go: the FIFO ResourcePool (M/M/s servers)
//   - rng.go: per-purpose RandomStreams split from one Entropy value
//
// # Scheduling model
//
// Time is simulated and advances only when the Engine pops the earliest
// PendingEvent. Events at the same time are dispatched in insertion order.
// A process suspends by calling Timeout, WaitUntil or ResourcePool.Request;
// the engine resumes it synchronously, so exactly one process executes at a
// time and every run is reproducible given the same Entropy.
//
// # Sub-packages
//
//   - sim/audit/: time-sampled auditor of pool state
//   - sim/model/: the M/M/s model composing arrivals, service and auditing
//   - sim/results/: mean-based reduction of a completed run
//   - sim/recording/: SQLite sink for run output
//   - sim/trace/: dispatch trace collected through an engine hook
package sim
